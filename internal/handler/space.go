package handler

import (
	"errors"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/resputil"
	"github.com/otalab/spaces/internal/util"
	"github.com/otalab/spaces/pkg/logutils"
	"github.com/otalab/spaces/pkg/objstore"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSpaceMgr)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// SpaceMgr serves the space directory and membership administration.
// Space creation and reconfiguration are platform-admin operations.
type SpaceMgr struct {
	name string
}

func NewSpaceMgr(_ *RegisterConfig) Manager {
	return &SpaceMgr{name: "space"}
}

func (mgr *SpaceMgr) GetName() string { return mgr.name }

func (mgr *SpaceMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SpaceMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/spaces", mgr.ListSpaces)
	g.GET("/spaces/:slug/members", mgr.ListMembers)
	g.POST("/spaces/:slug/members", mgr.AddMember)
	g.PUT("/spaces/:slug/members/:userId", mgr.UpdateMemberRole)
	g.DELETE("/spaces/:slug/members/:userId", mgr.RemoveMember)
}

func (mgr *SpaceMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/spaces", mgr.CreateSpace)
	g.PUT("/spaces/:id", mgr.UpdateSpace)
}

type SpaceResp struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description *string         `json:"description"`
	Role        model.SpaceRole `json:"role"`
	MemberCount int64           `json:"memberCount"`
	FileCount   int64           `json:"fileCount"`
	TotalSize   int64           `json:"totalSize"`
}

// ListSpaces godoc
// @Summary List the caller's spaces
// @Description Every active space the caller belongs to, with their role and usage stats
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]SpaceResp] "spaces with role and stats"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces [get]
func (mgr *SpaceMgr) ListSpaces(c *gin.Context) {
	token := util.GetToken(c)
	spaces, err := query.ListUserSpaces(c, token.UserID)
	if err != nil {
		logutils.Log.Errorf("list spaces for user %d: %v", token.UserID, err)
		resputil.Error(c, "Failed to fetch spaces", resputil.NotSpecified)
		return
	}
	resp := lo.Map(spaces, func(s query.SpaceWithRole, _ int) SpaceResp {
		return SpaceResp{
			ID:          s.Space.ID,
			Name:        s.Space.Name,
			Slug:        s.Space.Slug,
			Description: s.Space.Description,
			Role:        s.Role,
			MemberCount: s.MemberCount,
			FileCount:   s.FileCount,
			TotalSize:   s.TotalSize,
		}
	})
	resputil.Success(c, resp)
}

// requireMemberAdmin resolves the slug and checks the manage_members
// permission. On failure it has already written the response.
func (mgr *SpaceMgr) requireMemberAdmin(c *gin.Context) (*model.Space, util.JWTMessage, bool) {
	token := util.GetToken(c)
	slug := c.Param("slug")

	space, err := query.GetSpaceBySlug(c, slug)
	if err != nil {
		resputil.NotFoundError(c, "Space not found")
		return nil, token, false
	}
	allowed, err := query.HasSpacePermission(c, space.ID, token.UserID, model.ActionManageMembers)
	if err != nil {
		resputil.Error(c, "Failed to check permission", resputil.NotSpecified)
		return nil, token, false
	}
	if !allowed {
		resputil.ForbiddenError(c, "You do not have permission to manage members")
		return nil, token, false
	}
	return space, token, true
}

type MemberResp struct {
	UserID   uint            `json:"userId"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     model.SpaceRole `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// ListMembers godoc
// @Summary List a space's members
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Success 200 {object} resputil.Response[[]MemberResp] "members with identity and role"
// @Failure 403 {object} resputil.Response[any] "not a member"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/members [get]
func (mgr *SpaceMgr) ListMembers(c *gin.Context) {
	token := util.GetToken(c)
	slug := c.Param("slug")

	space, err := query.GetSpaceBySlug(c, slug)
	if err != nil {
		resputil.NotFoundError(c, "Space not found")
		return
	}
	hasAccess, err := query.HasSpaceAccess(c, token.UserID, slug)
	if err != nil {
		resputil.Error(c, "Failed to check space access", resputil.NotSpecified)
		return
	}
	if !hasAccess {
		resputil.ForbiddenError(c, "You don't have access to this space")
		return
	}

	members, err := query.ListSpaceMembers(c, space.ID)
	if err != nil {
		logutils.Log.Errorf("list members for space %s: %v", slug, err)
		resputil.Error(c, "Failed to fetch members", resputil.NotSpecified)
		return
	}
	resp := lo.Map(members, func(m query.MemberWithUser, _ int) MemberResp {
		return MemberResp{
			UserID:   m.Member.UserID,
			Name:     m.Name,
			Email:    m.Email,
			Role:     m.Member.Role,
			JoinedAt: m.Member.JoinedAt,
		}
	})
	resputil.Success(c, resp)
}

type AddMemberReq struct {
	UserID uint            `json:"userId" binding:"required"`
	Role   model.SpaceRole `json:"role" binding:"required"`
}

// AddMember godoc
// @Summary Add a member to a space
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param req body AddMemberReq true "user and role"
// @Success 201 {object} resputil.Response[MemberResp] "new membership"
// @Failure 403 {object} resputil.Response[any] "missing manage_members permission"
// @Failure 409 {object} resputil.Response[any] "already a member"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/members [post]
func (mgr *SpaceMgr) AddMember(c *gin.Context) {
	space, _, ok := mgr.requireMemberAdmin(c)
	if !ok {
		return
	}
	var req AddMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if !req.Role.Valid() {
		resputil.BadRequestError(c, "role: must be one of member, admin, owner")
		return
	}
	user, err := query.GetUserByID(c, req.UserID)
	if err != nil {
		resputil.NotFoundError(c, "User not found")
		return
	}
	member, err := query.AddSpaceMember(c, space.ID, user.ID, req.Role)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			resputil.HTTPError(c, 409, "User is already a member of this space", resputil.Conflict)
			return
		}
		logutils.Log.Errorf("add member %d to space %s: %v", req.UserID, space.Slug, err)
		resputil.Error(c, "Failed to add member", resputil.NotSpecified)
		return
	}
	resputil.Created(c, MemberResp{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	})
}

type UpdateMemberReq struct {
	Role model.SpaceRole `json:"role" binding:"required"`
}

// UpdateMemberRole godoc
// @Summary Change a member's role
// @Description Refuses to demote the last remaining owner
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param userId path int true "member user id"
// @Param req body UpdateMemberReq true "new role"
// @Success 200 {object} resputil.Response[gin.H] "update message"
// @Failure 400 {object} resputil.Response[any] "would leave the space ownerless"
// @Failure 403 {object} resputil.Response[any] "missing manage_members permission"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/members/{userId} [put]
func (mgr *SpaceMgr) UpdateMemberRole(c *gin.Context) {
	space, _, ok := mgr.requireMemberAdmin(c)
	if !ok {
		return
	}
	var uriReq struct {
		UserID uint `uri:"userId" binding:"required"`
	}
	if err := c.ShouldBindUri(&uriReq); err != nil {
		resputil.BadRequestError(c, "Invalid user ID")
		return
	}
	var req UpdateMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if !req.Role.Valid() {
		resputil.BadRequestError(c, "role: must be one of member, admin, owner")
		return
	}
	if _, err := query.UpdateSpaceMemberRole(c, space.ID, uriReq.UserID, req.Role); err != nil {
		if errors.Is(err, query.ErrLastOwner) {
			resputil.BadRequestError(c, "Cannot demote the last owner of the space")
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.NotFoundError(c, "Member not found")
			return
		}
		logutils.Log.Errorf("update member %d in space %s: %v", uriReq.UserID, space.Slug, err)
		resputil.Error(c, "Failed to update member", resputil.NotSpecified)
		return
	}
	resputil.Success(c, gin.H{"message": "Member role updated"})
}

// RemoveMember godoc
// @Summary Remove a member from a space
// @Description Refuses to remove the last remaining owner
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param userId path int true "member user id"
// @Success 200 {object} resputil.Response[gin.H] "removal message"
// @Failure 400 {object} resputil.Response[any] "would leave the space ownerless"
// @Failure 403 {object} resputil.Response[any] "missing manage_members permission"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/members/{userId} [delete]
func (mgr *SpaceMgr) RemoveMember(c *gin.Context) {
	space, _, ok := mgr.requireMemberAdmin(c)
	if !ok {
		return
	}
	var uriReq struct {
		UserID uint `uri:"userId" binding:"required"`
	}
	if err := c.ShouldBindUri(&uriReq); err != nil {
		resputil.BadRequestError(c, "Invalid user ID")
		return
	}
	if err := query.RemoveSpaceMember(c, space.ID, uriReq.UserID); err != nil {
		if errors.Is(err, query.ErrLastOwner) {
			resputil.BadRequestError(c, "Cannot remove the last owner of the space")
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.NotFoundError(c, "Member not found")
			return
		}
		logutils.Log.Errorf("remove member %d from space %s: %v", uriReq.UserID, space.Slug, err)
		resputil.Error(c, "Failed to remove member", resputil.NotSpecified)
		return
	}
	resputil.Success(c, gin.H{"message": "Member removed"})
}

type CreateSpaceReq struct {
	Name        string  `json:"name" binding:"required"`
	Slug        string  `json:"slug" binding:"required"`
	Description *string `json:"description"`
	OwnerID     uint    `json:"ownerId" binding:"required"`
}

// CreateSpace godoc
// @Summary Create a space
// @Description Provisions the space with its key prefix and seeds the initial owner
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param req body CreateSpaceReq true "space definition"
// @Success 201 {object} resputil.Response[SpaceSummary] "created space"
// @Failure 409 {object} resputil.Response[any] "slug taken"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/admin/spaces [post]
func (mgr *SpaceMgr) CreateSpace(c *gin.Context) {
	var req CreateSpaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if len(req.Slug) > 50 || !slugPattern.MatchString(req.Slug) {
		resputil.BadRequestError(c, "slug: must be lowercase letters, digits and hyphens, at most 50 characters")
		return
	}
	owner, err := query.GetUserByID(c, req.OwnerID)
	if err != nil {
		resputil.NotFoundError(c, "Owner user not found")
		return
	}

	space := &model.Space{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		S3Prefix:    objstore.KeyPrefix + req.Slug + "/",
		IsActive:    true,
	}
	if err := query.CreateSpace(c, space, owner.ID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			resputil.HTTPError(c, 409, "A space with this slug already exists", resputil.Conflict)
			return
		}
		logutils.Log.Errorf("create space %s: %v", req.Slug, err)
		resputil.Error(c, "Failed to create space", resputil.NotSpecified)
		return
	}
	resputil.Created(c, SpaceSummary{ID: space.ID, Name: space.Name, Slug: space.Slug})
}

type UpdateSpaceReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// UpdateSpace godoc
// @Summary Update a space
// @Description Renames, redescribes or deactivates a space. The slug and key prefix are immutable.
// @Tags Space
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "space id"
// @Param req body UpdateSpaceReq true "fields to change"
// @Success 200 {object} resputil.Response[SpaceSummary] "updated space"
// @Failure 404 {object} resputil.Response[any] "unknown space"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/admin/spaces/{id} [put]
func (mgr *SpaceMgr) UpdateSpace(c *gin.Context) {
	var uriReq struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uriReq); err != nil {
		resputil.BadRequestError(c, "Invalid space ID")
		return
	}
	var req UpdateSpaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	space, err := query.GetSpaceByID(c, uriReq.ID)
	if err != nil {
		resputil.NotFoundError(c, "Space not found")
		return
	}
	if req.Name != nil {
		space.Name = *req.Name
	}
	if req.Description != nil {
		space.Description = req.Description
	}
	if req.IsActive != nil {
		space.IsActive = *req.IsActive
	}
	if err := query.SaveSpace(c, space); err != nil {
		logutils.Log.Errorf("update space %d: %v", space.ID, err)
		resputil.Error(c, "Failed to update space", resputil.NotSpecified)
		return
	}
	resputil.Success(c, SpaceSummary{ID: space.ID, Name: space.Name, Slug: space.Slug})
}
