package model

import (
	"time"
)

const (
	WithdrawalStatusPending   = "Pending"
	WithdrawalStatusCompleted = "Completed"
	WithdrawalStatusFailed    = "Failed"
)

// ValidStatusTransitions 提现状态机
// Pending 是唯一初始状态，Completed / Failed 是终态，终态之间不可互转
var ValidStatusTransitions = map[string][]string{
	WithdrawalStatusPending: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Withdrawal 提现申请表
// 创建时原子扣减用户余额；被管理员驳回（Failed）时原子退回余额
type Withdrawal struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	WithdrawalNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	UserID       int64     `gorm:"index;not null" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	OptionName   string    `gorm:"type:varchar(255);not null" json:"option_name"` // 提现方式名称（快照，不做外键）
	Amount       int64     `gorm:"not null" json:"amount"`                        // 提现金额（分），创建后不可变
	Status       string    `gorm:"type:varchar(50);index;not null;default:Pending" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
