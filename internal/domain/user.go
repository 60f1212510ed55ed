// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen = 64
	MaxRoleLen   = 32
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
	ErrRoleEmpty     = errors.New("role empty")
	ErrRoleTooLong   = errors.New("role too long")
)

type (
	UserID       string
	ConnectionID string
	Role         string
)

const (
	RoleOwner     Role = "owner"
	RoleAnonymous Role = "anonymous"
)

// Exclusive reports whether at most one participant may hold the role at a time.
// Roles outside the known set are shared.
func (r Role) Exclusive() bool {
	return r == RoleOwner || r == RoleAnonymous
}

// Label is the human readable name used in join/leave notifications.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "Car Owner"
	case RoleAnonymous:
		return "Anonymous User"
	default:
		return string(r)
	}
}

func (r Role) Validate() error {
	if strings.TrimSpace(string(r)) == "" {
		return ErrRoleEmpty
	}
	if len(r) > MaxRoleLen {
		return ErrRoleTooLong
	}
	return nil
}

func (id UserID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}
