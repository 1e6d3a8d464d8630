package model

import "time"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleSubAdmin Role = "SUB_ADMIN"
	RoleUser     Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSubAdmin, RoleUser:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:128" json:"name"`
	Email        *string   `gorm:"size:128;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:USER" json:"role"`
	IsAnonymous  bool      `gorm:"not null;default:false;index" json:"isAnonymous"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName falls back to "Anonymous" for visitors without a name.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "Anonymous"
	}
	return u.Name
}

func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
