package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/pkg/idgen"

	"gorm.io/gorm"
)

var ErrNegativeBalance = errors.New("余额不能为负数")

type AdminService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	withdrawalRepo  *repository.WithdrawalRepository
	transactionRepo *repository.TransactionRepository
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// ListUsers 普通用户列表，管理员账号不对外展示
func (s *AdminService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListByRole(ctx, model.RoleUser)
}

// UpdateUser 管理员直接修改用户姓名和余额
//
// 行政修正，不走提现状态机；余额不允许改成负数。
// 余额变动额外记一笔 ADMIN_ADJUST 流水，保证对账任务的不变式成立
func (s *AdminService) UpdateUser(ctx context.Context, userID int64, name string, balance int64) (*model.User, error) {
	if balance < 0 {
		return nil, ErrNegativeBalance
	}

	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.UpdateProfile(ctx, tx, userID, name, balance); err != nil {
			return err
		}

		if balance == user.Balance {
			return nil
		}

		transaction := &model.BalanceTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Amount:        balance - user.Balance,
			Type:          model.TransactionTypeAdminAdjust,
			BalanceBefore: user.Balance,
			BalanceAfter:  balance,
			Remark:        "管理员调整余额",
		}
		return s.transactionRepo.Create(ctx, tx, transaction)
	})
	if err != nil {
		return nil, err
	}

	user.Name = name
	user.Balance = balance

	log.Printf("管理员更新用户: userID=%d, balance=%d", userID, balance)

	return user, nil
}

// DeleteUser 删除用户并级联删除其提现记录
func (s *AdminService) DeleteUser(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.DeleteByUserID(ctx, tx, userID); err != nil {
			return fmt.Errorf("删除提现记录失败: %w", err)
		}
		return s.userRepo.Delete(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	log.Printf("管理员删除用户: userID=%d, email=%s", userID, user.Email)

	return nil
}

// ListWithdrawals 全部提现单，带申请人信息
type AdminWithdrawal struct {
	*model.Withdrawal
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

func (s *AdminService) ListWithdrawals(ctx context.Context) ([]*AdminWithdrawal, error) {
	withdrawals, err := s.withdrawalRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*AdminWithdrawal, 0, len(withdrawals))
	for _, w := range withdrawals {
		result = append(result, &AdminWithdrawal{
			Withdrawal: w,
			UserName:   w.User.Name,
			UserEmail:  w.User.Email,
		})
	}
	return result, nil
}

// Stats 管理端看板统计
type Stats struct {
	UserCount          int64 `json:"user_count"`
	PendingWithdrawals int64 `json:"pending_withdrawals"`
	TotalBalance       int64 `json:"total_balance"`  // 普通用户余额总和（分）
	TotalPaidOut       int64 `json:"total_paid_out"` // 已打款总额（分）
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	userCount, err := s.userRepo.CountByRole(ctx, model.RoleUser)
	if err != nil {
		return nil, err
	}

	pending, err := s.withdrawalRepo.CountByStatus(ctx, model.WithdrawalStatusPending)
	if err != nil {
		return nil, err
	}

	totalBalance, err := s.userRepo.SumBalanceByRole(ctx, model.RoleUser)
	if err != nil {
		return nil, err
	}

	totalPaidOut, err := s.withdrawalRepo.SumAmountByStatus(ctx, model.WithdrawalStatusCompleted)
	if err != nil {
		return nil, err
	}

	return &Stats{
		UserCount:          userCount,
		PendingWithdrawals: pending,
		TotalBalance:       totalBalance,
		TotalPaidOut:       totalPaidOut,
	}, nil
}
