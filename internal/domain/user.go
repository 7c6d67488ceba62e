package domain

import (
	"github.com/google/uuid"
)

// Contact is the slice of a user record the delivery channels need. Users
// themselves are owned by the task/user service; this side only reads them.
type Contact struct {
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	Phone          string    `json:"phone" db:"phone"`
	DeviceToken    string    `json:"device_token" db:"device_token"`
	SlackUserID    string    `json:"slack_user_id" db:"slack_user_id"`
	TelegramChatID string    `json:"telegram_chat_id" db:"telegram_chat_id"`
}

type UserRole string

const (
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "admin"
	RoleSystem UserRole = "system"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   UserRole  `json:"role"`
}

func (p *Principal) HasAnyRole(roles ...UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
