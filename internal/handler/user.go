package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/resputil"
	"github.com/otalab/spaces/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name string
}

func NewUserMgr(_ *RegisterConfig) Manager {
	return &UserMgr{name: "user"}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/users", mgr.ListUsers)
	g.POST("/users", mgr.CreateUser)
}

// ListUsers godoc
// @Summary List all platform users
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]UserResp] "all users"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/admin/users [get]
func (mgr *UserMgr) ListUsers(c *gin.Context) {
	users, err := query.ListUsers(c)
	if err != nil {
		logutils.Log.Errorf("list users: %v", err)
		resputil.Error(c, "Failed to fetch users", resputil.NotSpecified)
		return
	}
	resp := lo.Map(users, func(u model.User, _ int) UserResp {
		return UserResp{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	})
	resputil.Success(c, resp)
}

type CreateUserReq struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     model.Role `json:"role"`
}

// CreateUser godoc
// @Summary Create a platform user
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Param req body CreateUserReq true "user definition"
// @Success 201 {object} resputil.Response[UserResp] "created user"
// @Failure 409 {object} resputil.Response[any] "email taken"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/admin/users [post]
func (mgr *UserMgr) CreateUser(c *gin.Context) {
	var req CreateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	role := req.Role
	if role == 0 {
		role = model.RoleUser
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, "Failed to hash password", resputil.NotSpecified)
		return
	}
	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     role,
		Status:   model.StatusActive,
	}
	if err := query.CreateUser(c, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			resputil.HTTPError(c, 409, "A user with this email already exists", resputil.Conflict)
			return
		}
		logutils.Log.Errorf("create user %s: %v", req.Email, err)
		resputil.Error(c, "Failed to create user", resputil.NotSpecified)
		return
	}
	resputil.Created(c, UserResp{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}
