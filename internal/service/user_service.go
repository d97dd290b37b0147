package service

import (
	"context"
	"fmt"

	"surveypay/internal/model"
	"surveypay/internal/repository"

	"gorm.io/gorm"
)

type UserService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	withdrawalRepo  *repository.WithdrawalRepository
	transactionRepo *repository.TransactionRepository
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Profile 用户资料 + 提现历史
type Profile struct {
	User              *model.User         `json:"user"`
	WithdrawalHistory []*model.Withdrawal `json:"withdrawal_history"`
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	withdrawals, err := s.withdrawalRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询提现历史失败: %w", err)
	}

	return &Profile{
		User:              user,
		WithdrawalHistory: withdrawals,
	}, nil
}

// TransactionHistory 余额流水分页结果
type TransactionHistory struct {
	Transactions []*model.BalanceTransaction `json:"transactions"`
	Total        int64                       `json:"total"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
}

// GetTransactions 用户自己的余额流水（注册赠送、提现扣款、退款、管理员调整）
func (s *UserService) GetTransactions(ctx context.Context, userID int64, page, pageSize int) (*TransactionHistory, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	transactions, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	return &TransactionHistory{
		Transactions: transactions,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}
