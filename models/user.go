package models

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a local account in the system
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Username     string     `gorm:"uniqueIndex;not null;size:100" json:"username"`
	DisplayName  string     `gorm:"size:255" json:"display_name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Role         string     `gorm:"not null;size:20;default:user" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLogin    *time.Time `gorm:"default:null" json:"last_login"`

	BibMaps    []BibMap    `gorm:"foreignKey:UserID" json:"-"`
	References []Reference `gorm:"foreignKey:UserID" json:"-"`
	Media      []Media     `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
