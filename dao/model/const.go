// Constants mapped to database columns.
// Gin rejects zero values for fields tagged `binding:"required"`, so numeric
// enums start at iota + 1 to keep the first constant bindable.
package model

// User role in the platform.
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleUser
	RoleAdmin
)

// User status.
type Status uint8

const (
	StatusPending  Status = iota + 1 // Pending status, not yet activated
	StatusActive                     // Active status
	StatusInactive                   // Inactive status
)

// SpaceRole is a member's role within one space. Stored (and exposed over
// the API) as a string.
type SpaceRole string

const (
	SpaceRoleMember SpaceRole = "member"
	SpaceRoleAdmin  SpaceRole = "admin"
	SpaceRoleOwner  SpaceRole = "owner"
)

func (r SpaceRole) Valid() bool {
	switch r {
	case SpaceRoleMember, SpaceRoleAdmin, SpaceRoleOwner:
		return true
	}
	return false
}

// Action is a permission-gated operation inside a space.
type Action string

const (
	ActionUpload        Action = "upload"
	ActionDelete        Action = "delete"
	ActionManageMembers Action = "manage_members"
	ActionManageSpace   Action = "manage_space"
)

// Can reports whether the role is allowed to perform the action. Unknown
// roles and unknown actions are denied.
func (r SpaceRole) Can(action Action) bool {
	if !r.Valid() {
		return false
	}
	switch action {
	case ActionUpload:
		return true
	case ActionDelete, ActionManageMembers:
		return r == SpaceRoleAdmin || r == SpaceRoleOwner
	case ActionManageSpace:
		return r == SpaceRoleOwner
	default:
		return false
	}
}
