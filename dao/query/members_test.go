package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
)

func TestLastOwnerCannotBeRemoved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner", "owner@example.com")
	member := seedUser(t, db, "member", "member@example.com")
	space := seedSpace(t, db, "acme", true)
	seedMember(t, db, space.ID, owner.ID, model.SpaceRoleOwner)
	seedMember(t, db, space.ID, member.ID, model.SpaceRoleMember)

	err := RemoveSpaceMember(ctx, space.ID, owner.ID)
	assert.ErrorIs(t, err, ErrLastOwner)

	// removing a non-owner is fine
	require.NoError(t, RemoveSpaceMember(ctx, space.ID, member.ID))
}

func TestLastOwnerCanLeaveAfterHandover(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner", "owner@example.com")
	successor := seedUser(t, db, "successor", "successor@example.com")
	space := seedSpace(t, db, "acme", true)
	seedMember(t, db, space.ID, owner.ID, model.SpaceRoleOwner)
	seedMember(t, db, space.ID, successor.ID, model.SpaceRoleMember)

	_, err := UpdateSpaceMemberRole(ctx, space.ID, successor.ID, model.SpaceRoleOwner)
	require.NoError(t, err)
	require.NoError(t, RemoveSpaceMember(ctx, space.ID, owner.ID))
}

func TestLastOwnerCannotBeDemoted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner", "owner@example.com")
	space := seedSpace(t, db, "acme", true)
	seedMember(t, db, space.ID, owner.ID, model.SpaceRoleOwner)

	_, err := UpdateSpaceMemberRole(ctx, space.ID, owner.ID, model.SpaceRoleAdmin)
	assert.ErrorIs(t, err, ErrLastOwner)

	// keeping the owner role is a no-op, not a violation
	_, err = UpdateSpaceMemberRole(ctx, space.ID, owner.ID, model.SpaceRoleOwner)
	assert.NoError(t, err)
}

func TestAddSpaceMemberDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice", "alice@example.com")
	space := seedSpace(t, db, "acme", true)

	_, err := AddSpaceMember(ctx, space.ID, user.ID, model.SpaceRoleMember)
	require.NoError(t, err)
	_, err = AddSpaceMember(ctx, space.ID, user.ID, model.SpaceRoleAdmin)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestHasSpaceAccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice", "alice@example.com")
	bob := seedUser(t, db, "bob", "bob@example.com")
	acme := seedSpace(t, db, "acme", true)
	dormant := seedSpace(t, db, "dormant", false)
	seedMember(t, db, acme.ID, alice.ID, model.SpaceRoleMember)
	seedMember(t, db, dormant.ID, alice.ID, model.SpaceRoleOwner)

	ok, err := HasSpaceAccess(ctx, alice.ID, "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasSpaceAccess(ctx, bob.ID, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	// membership in a deactivated space grants nothing
	ok, err = HasSpaceAccess(ctx, alice.ID, "dormant")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasSpacePermission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	member := seedUser(t, db, "member", "member@example.com")
	admin := seedUser(t, db, "admin", "admin@example.com")
	outsider := seedUser(t, db, "outsider", "outsider@example.com")
	space := seedSpace(t, db, "acme", true)
	seedMember(t, db, space.ID, member.ID, model.SpaceRoleMember)
	seedMember(t, db, space.ID, admin.ID, model.SpaceRoleAdmin)

	ok, err := HasSpacePermission(ctx, space.ID, member.ID, model.ActionUpload)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasSpacePermission(ctx, space.ID, member.ID, model.ActionDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = HasSpacePermission(ctx, space.ID, admin.ID, model.ActionDelete)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasSpacePermission(ctx, space.ID, admin.ID, model.ActionManageSpace)
	require.NoError(t, err)
	assert.False(t, ok)

	// non-members fail closed
	ok, err = HasSpacePermission(ctx, space.ID, outsider.ID, model.ActionUpload)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListUserSpacesStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice", "alice@example.com")
	bob := seedUser(t, db, "bob", "bob@example.com")
	acme := seedSpace(t, db, "acme", true)
	inactive := seedSpace(t, db, "inactive", false)
	seedMember(t, db, acme.ID, alice.ID, model.SpaceRoleAdmin)
	seedMember(t, db, acme.ID, bob.ID, model.SpaceRoleOwner)
	seedMember(t, db, inactive.ID, alice.ID, model.SpaceRoleOwner)

	seedUpload(t, db, acme.ID, alice.ID, "a.zip", "uploads/acme/1-a.zip", 100, time.Now())
	seedUpload(t, db, acme.ID, bob.ID, "b.zip", "uploads/acme/2-b.zip", 250, time.Now())

	spaces, err := ListUserSpaces(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	s := spaces[0]
	assert.Equal(t, "acme", s.Space.Slug)
	assert.Equal(t, model.SpaceRoleAdmin, s.Role)
	assert.Equal(t, int64(2), s.MemberCount)
	assert.Equal(t, int64(2), s.FileCount)
	assert.Equal(t, int64(350), s.TotalSize)
}

func TestCreateSpaceSeedsOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner", "owner@example.com")

	space := &model.Space{Name: "Acme", Slug: "acme", S3Prefix: "uploads/acme/", IsActive: true}
	require.NoError(t, CreateSpace(ctx, space, owner.ID))

	member, err := GetSpaceMember(ctx, space.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SpaceRoleOwner, member.Role)
}
