package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 用户表
// 记录用户的账户信息和奖励余额（单位：分），是整个系统的核心数据
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Balance      int64     `gorm:"not null;default:0" json:"balance"` // 可提现余额（分）
	Version      int       `gorm:"not null;default:0" json:"-"`       // 乐观锁版本号
	Role         string    `gorm:"type:varchar(50);not null;default:user" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
