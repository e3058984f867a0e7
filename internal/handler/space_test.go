package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
)

type spaceFixture struct {
	db       *gorm.DB
	router   *gin.Engine
	owner    *model.User
	member   *model.User
	platform *model.User
	space    *model.Space
}

func newSpaceFixture(t *testing.T) *spaceFixture {
	t.Helper()
	db := setupEnv(t)
	router := newRouter(&RegisterConfig{ObjectStore: newMemStore()})

	owner := seedUser(t, db, "owner", model.RoleUser)
	member := seedUser(t, db, "member", model.RoleUser)
	platform := seedUser(t, db, "platform", model.RoleAdmin)
	space := seedSpace(t, db, "acme")
	seedMember(t, db, space.ID, owner.ID, model.SpaceRoleOwner)
	seedMember(t, db, space.ID, member.ID, model.SpaceRoleMember)

	return &spaceFixture{db: db, router: router, owner: owner, member: member, platform: platform, space: space}
}

func decodeList(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Data
}

func TestListSpacesShowsOnlyMemberships(t *testing.T) {
	f := newSpaceFixture(t)
	outsider := seedUser(t, f.db, "outsider", model.RoleUser)

	w := doJSON(t, f.router, http.MethodGet, "/api/spaces", bearer(t, f.member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	spaces := decodeList(t, w.Body.Bytes())
	require.Len(t, spaces, 1)
	assert.Equal(t, "acme", spaces[0]["slug"])
	assert.Equal(t, "member", spaces[0]["role"])
	assert.Equal(t, float64(2), spaces[0]["memberCount"])

	w = doJSON(t, f.router, http.MethodGet, "/api/spaces", bearer(t, outsider), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeList(t, w.Body.Bytes()))
}

func TestMemberManagementPermissions(t *testing.T) {
	f := newSpaceFixture(t)
	candidate := seedUser(t, f.db, "candidate", model.RoleUser)
	body := gin.H{"userId": candidate.ID, "role": "member"}

	// plain members cannot manage the roster
	w := doJSON(t, f.router, http.MethodPost, "/api/spaces/acme/members", bearer(t, f.member), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, f.router, http.MethodPost, "/api/spaces/acme/members", bearer(t, f.owner), body)
	require.Equal(t, http.StatusCreated, w.Code)

	// duplicate add conflicts
	w = doJSON(t, f.router, http.MethodPost, "/api/spaces/acme/members", bearer(t, f.owner), body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListMembersRequiresAccess(t *testing.T) {
	f := newSpaceFixture(t)
	outsider := seedUser(t, f.db, "outsider", model.RoleUser)

	w := doJSON(t, f.router, http.MethodGet, "/api/spaces/acme/members", bearer(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, f.router, http.MethodGet, "/api/spaces/acme/members", bearer(t, f.member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	members := decodeList(t, w.Body.Bytes())
	assert.Len(t, members, 2)
}

func TestLastOwnerGuardOverHTTP(t *testing.T) {
	f := newSpaceFixture(t)
	auth := bearer(t, f.owner)

	w := doJSON(t, f.router, http.MethodPut,
		fmt.Sprintf("/api/spaces/acme/members/%d", f.owner.ID), auth, gin.H{"role": "member"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, msg := envelope(t, w)
	assert.Contains(t, msg, "last owner")

	w = doJSON(t, f.router, http.MethodDelete,
		fmt.Sprintf("/api/spaces/acme/members/%d", f.owner.ID), auth, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// promoting the member first unblocks the removal
	w = doJSON(t, f.router, http.MethodPut,
		fmt.Sprintf("/api/spaces/acme/members/%d", f.member.ID), auth, gin.H{"role": "owner"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, f.router, http.MethodDelete,
		fmt.Sprintf("/api/spaces/acme/members/%d", f.owner.ID), auth, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminSpaceLifecycle(t *testing.T) {
	f := newSpaceFixture(t)
	adminAuth := bearer(t, f.platform)

	// ordinary users cannot reach the admin surface
	w := doJSON(t, f.router, http.MethodPost, "/api/admin/spaces", bearer(t, f.owner),
		gin.H{"name": "Beta", "slug": "beta", "ownerId": f.owner.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, f.router, http.MethodPost, "/api/admin/spaces", adminAuth,
		gin.H{"name": "Beta", "slug": "beta", "ownerId": f.owner.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	data, _ := envelope(t, w)
	spaceID := data["id"].(float64)

	// the named owner can use the new space immediately
	w = doJSON(t, f.router, http.MethodGet, "/api/spaces/beta/members", bearer(t, f.owner), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// slug collisions conflict
	w = doJSON(t, f.router, http.MethodPost, "/api/admin/spaces", adminAuth,
		gin.H{"name": "Beta Again", "slug": "beta", "ownerId": f.owner.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	// slug shape is enforced
	w = doJSON(t, f.router, http.MethodPost, "/api/admin/spaces", adminAuth,
		gin.H{"name": "Bad", "slug": "Not A Slug", "ownerId": f.owner.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// deactivating makes the space invisible
	w = doJSON(t, f.router, http.MethodPut, fmt.Sprintf("/api/admin/spaces/%.0f", spaceID), adminAuth,
		gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, f.router, http.MethodGet, "/api/spaces/beta/members", bearer(t, f.owner), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
