package users

import (
	"strings"
	"time"
)

// Role names a capability granted to an authenticated user.
type Role string

const (
	// RoleAdmin unlocks the organizer screens.
	RoleAdmin Role = "admin"
	// RoleUser is the default role of a signed-in guest.
	RoleUser Role = "user"
)

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(normalize(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", ErrUnknownRole
	}
}

// RoleAssignment records that a user holds a role.
type RoleAssignment struct {
	ID        string    `gorm:"column:id;primaryKey;size:190"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_user_roles_user_role,priority:1"`
	Role      Role      `gorm:"column:role;size:32;not null;uniqueIndex:idx_user_roles_user_role,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName exposes the table backing role assignments.
func (RoleAssignment) TableName() string {
	return "user_roles"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
