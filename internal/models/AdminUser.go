package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleEditor     = "EDITOR"
)

type AdminUser struct {
	gorm.Model
	Username     string     `json:"username" gorm:"uniqueIndex;not null"` // always lowercase
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Role         string     `json:"role" gorm:"default:EDITOR;not null"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}
