package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/middleware"
	"github.com/otalab/spaces/internal/util"
)

func setupEnv(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	util.SetTokenMgr(util.NewTokenManager("handler-test-secret", 1, 24))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Space{}, &model.SpaceMember{}, &model.Upload{}))
	query.SetDB(db)
	return db
}

// newRouter assembles the same route tree the server runs, against the
// given object store.
func newRouter(conf *RegisterConfig) *gin.Engine {
	r := gin.New()

	public := r.Group("/")
	protected := r.Group("/api")
	protected.Use(middleware.AuthProtected())
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthProtected(), middleware.AuthAdmin())

	for _, register := range Registers {
		manager := register(conf)
		manager.RegisterPublic(public)
		manager.RegisterProtected(protected)
		manager.RegisterAdmin(admin)
	}
	return r
}

func seedUser(t *testing.T, db *gorm.DB, name string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     role,
		Status:   model.StatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSpace(t *testing.T, db *gorm.DB, slug string) *model.Space {
	t.Helper()
	space := &model.Space{
		Name:     slug,
		Slug:     slug,
		S3Prefix: "uploads/" + slug + "/",
		IsActive: true,
	}
	require.NoError(t, db.Create(space).Error)
	return space
}

func seedMember(t *testing.T, db *gorm.DB, spaceID, userID uint, role model.SpaceRole) {
	t.Helper()
	require.NoError(t, db.Create(&model.SpaceMember{
		SpaceID:  spaceID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}).Error)
}

func bearer(t *testing.T, user *model.User) string {
	t.Helper()
	access, _, err := util.GetTokenMgr().CreateTokens(&util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	})
	require.NoError(t, err)
	return "Bearer " + access
}

func doJSON(t *testing.T, r *gin.Engine, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// envelope decodes the {code,data,msg} response wrapper.
func envelope(t *testing.T, w *httptest.ResponseRecorder) (map[string]any, string) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
		Msg  string          `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := map[string]any{}
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			// data may be an array; callers decode those themselves
			return nil, resp.Msg
		}
	}
	return data, resp.Msg
}
