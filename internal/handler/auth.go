package handler

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/resputil"
	"github.com/otalab/spaces/internal/util"
	"github.com/otalab/spaces/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name string
}

func NewAuthMgr(_ *RegisterConfig) Manager {
	return &AuthMgr{name: "auth"}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/login", mgr.Login)
	g.POST("/refresh", mgr.Refresh)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResp struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserResp `json:"user"`
}

type UserResp struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param req body LoginReq true "credentials"
// @Success 200 {object} resputil.Response[LoginResp] "token pair and profile"
// @Failure 401 {object} resputil.Response[any] "bad credentials or inactive account"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user, err := query.GetUserByEmail(c, req.Email)
	if err != nil {
		// Same answer as a wrong password, so the endpoint does not
		// reveal which emails exist.
		resputil.HTTPError(c, 401, "Invalid email or password", resputil.InvalidCredentials)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		resputil.HTTPError(c, 401, "Invalid email or password", resputil.InvalidCredentials)
		return
	}
	if user.Status != model.StatusActive {
		resputil.HTTPError(c, 401, "Account is not active", resputil.InvalidCredentials)
		return
	}

	access, refresh, err := util.GetTokenMgr().CreateTokens(&util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	})
	if err != nil {
		logutils.Log.Errorf("create tokens for user %d: %v", user.ID, err)
		resputil.Error(c, "Failed to create tokens", resputil.NotSpecified)
		return
	}
	resputil.Success(c, LoginResp{
		AccessToken:  access,
		RefreshToken: refresh,
		User: UserResp{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

type RefreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type RefreshResp struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param req body RefreshReq true "refresh token"
// @Success 200 {object} resputil.Response[RefreshResp] "new token pair"
// @Failure 401 {object} resputil.Response[any] "expired or malformed token"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /refresh [post]
func (mgr *AuthMgr) Refresh(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	claims, err := util.GetTokenMgr().CheckToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, 401, "Invalid refresh token", resputil.TokenInvalid)
		return
	}
	// The role is re-read so a demotion takes effect at the next refresh.
	user, err := query.GetUserByID(c, claims.UserID)
	if err != nil || user.Status != model.StatusActive {
		resputil.HTTPError(c, 401, "Account is not active", resputil.InvalidCredentials)
		return
	}
	access, refresh, err := util.GetTokenMgr().CreateTokens(&util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	})
	if err != nil {
		logutils.Log.Errorf("refresh tokens for user %d: %v", user.ID, err)
		resputil.Error(c, "Failed to create tokens", resputil.NotSpecified)
		return
	}
	resputil.Success(c, RefreshResp{AccessToken: access, RefreshToken: refresh})
}
