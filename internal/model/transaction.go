package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeSignupBonus = "SIGNUP_BONUS" // 注册赠送
	TransactionTypeWithdraw    = "WITHDRAW"     // 提现（扣款）
	TransactionTypeRefund      = "REFUND"       // 提现驳回退款
	TransactionTypeAdminAdjust = "ADMIN_ADJUST" // 管理员调整余额
)

// ============================================================================
// 余额流水实体
// ============================================================================

// BalanceTransaction 余额流水表
// 记录账户的每一笔余额变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 提现相关流水必须关联提现单号 —— 便于对账
// 3. 记录交易前后余额 —— 便于校验余额一致性
type BalanceTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`                               // 用户ID
	WithdrawalNo  string    `gorm:"type:varchar(64);index" json:"withdrawal_no"`                 // 关联提现单号（非提现流水为空）
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 交易类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transaction"
}
