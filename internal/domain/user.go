package domain

import (
	"time"

	"gorm.io/gorm"
)

// 登录方式
const (
	MethodPassword  = "password"
	MethodFederated = "federated"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:191;not null"`
	Name         string `gorm:"size:64"`
	PasswordHash string `gorm:"size:100"`
	Method       string `gorm:"size:16;not null;default:password"`
	Role         string `gorm:"size:16;not null;default:user"` // "user"/"admin"

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string { return "users" }

func (u *User) Identity() *Identity {
	return &Identity{UID: u.ID, Email: u.Email, Name: u.Name}
}
