package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"surveypay/internal/config"
	"surveypay/internal/infrastructure/lock"
	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount       = errors.New("提现金额必须为正整数")
	ErrInvalidOption       = errors.New("请选择提现方式")
	ErrInvalidTargetStatus = errors.New("目标状态不合法")
)

type WithdrawalService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	withdrawalRepo  *repository.WithdrawalRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewWithdrawalService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WithdrawalService {
	return &WithdrawalService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// Request 发起提现
//
// 【关键点】提现是整个系统最核心的操作，需要保证：
//  1. 原子性：余额扣减、提现单创建、流水记录必须同时成功或同时失败
//  2. 并发安全：同一用户的并发请求靠分布式锁串行化，
//     兜底靠 Deduct 的条件更新——两道防线都不会让余额变负
func (s *WithdrawalService) Request(ctx context.Context, userID int64, optionName string, amount int64) (*model.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if optionName == "" {
		return nil, ErrInvalidOption
	}

	withdrawalNo := idgen.GenerateWithdrawalNo()

	// 获取分布式锁（测试环境不配 Redis，数据库条件更新独立兜底）
	if s.redisClient != nil {
		withdrawLock := lock.NewWithdrawLock(s.redisClient, userID, withdrawalNo)
		if err := withdrawLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer withdrawLock.Unlock(ctx)
	}

	// 预检余额，常见的余额不足在这里就拦下；真正的防线在事务里
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance < amount {
		return nil, repository.ErrBalanceNotEnough
	}

	withdrawal := &model.Withdrawal{
		ID:           idgen.NextID(),
		WithdrawalNo: withdrawalNo,
		UserID:       userID,
		OptionName:   optionName,
		Amount:       amount,
		Status:       model.WithdrawalStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 预检后到这里余额可能已被并发请求改过，快照在事务内重读
		user, err := s.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := s.userRepo.Deduct(ctx, tx, userID, amount); err != nil {
			return err
		}

		transaction := &model.BalanceTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			WithdrawalNo:  withdrawalNo,
			Amount:        -amount,
			Type:          model.TransactionTypeWithdraw,
			BalanceBefore: user.Balance,
			BalanceAfter:  user.Balance - amount,
			Remark:        fmt.Sprintf("提现-%s", optionName),
		}

		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现单失败: %w", err)
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return s.enqueueEvent(ctx, tx, s.cfg.Kafka.Topic.WithdrawalRequested, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("提现申请成功: withdrawalNo=%s, userID=%d, amount=%d", withdrawalNo, userID, amount)

	return withdrawal, nil
}

// Resolve 管理员审核提现：Pending -> Completed / Failed
//
// 【关键点】审核流程：
// 1. 只有 Pending 状态的单子可以审核，且只能审核一次
// 2. 驳回（Failed）时全额退回用户余额，不收手续费
// 3. 状态更新和退款在同一个事务里，不会出现"已驳回但没退款"的中间态
func (s *WithdrawalService) Resolve(ctx context.Context, withdrawalID int64, newStatus string) (*model.Withdrawal, error) {
	if newStatus != model.WithdrawalStatusCompleted && newStatus != model.WithdrawalStatusFailed {
		return nil, ErrInvalidTargetStatus
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	if withdrawal.Status != model.WithdrawalStatusPending {
		return nil, repository.ErrWithdrawalStatusInvalid
	}

	// 幂等检查：已有退款流水说明这笔单处理过了，直接拒绝
	// （状态条件更新是硬防线，这里提前拦截重复提交）
	if newStatus == model.WithdrawalStatusFailed {
		refunded, err := s.transactionRepo.GetByWithdrawalNoAndType(ctx, withdrawal.WithdrawalNo, model.TransactionTypeRefund)
		if err != nil {
			return nil, fmt.Errorf("查询退款流水失败: %w", err)
		}
		if refunded != nil {
			return nil, repository.ErrWithdrawalStatusInvalid
		}
	}

	if s.redisClient != nil {
		resolveLock := lock.NewResolveLock(s.redisClient, withdrawalID)
		if err := resolveLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer resolveLock.Unlock(ctx)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 条件更新：并发审核只有一方能把 Pending 改掉，另一方在这里失败
		if err := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalID, model.WithdrawalStatusPending, newStatus); err != nil {
			return err
		}

		if newStatus == model.WithdrawalStatusFailed {
			user, err := s.userRepo.GetByID(ctx, tx, withdrawal.UserID)
			if err != nil {
				return err
			}

			if err := s.userRepo.Increase(ctx, tx, withdrawal.UserID, withdrawal.Amount); err != nil {
				return fmt.Errorf("退款到账失败: %w", err)
			}

			transaction := &model.BalanceTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        withdrawal.UserID,
				WithdrawalNo:  withdrawal.WithdrawalNo,
				Amount:        withdrawal.Amount,
				Type:          model.TransactionTypeRefund,
				BalanceBefore: user.Balance,
				BalanceAfter:  user.Balance + withdrawal.Amount,
				Remark:        fmt.Sprintf("提现驳回退款-%s", withdrawal.WithdrawalNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		withdrawal.Status = newStatus
		return s.enqueueEvent(ctx, tx, s.cfg.Kafka.Topic.WithdrawalResolved, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("提现审核完成: withdrawalNo=%s, status=%s", withdrawal.WithdrawalNo, newStatus)

	return withdrawal, nil
}

// PayoutOptions 提现方式目录
func (s *WithdrawalService) PayoutOptions() []config.PayoutOption {
	return s.cfg.Business.PayoutOptions
}

// enqueueEvent 在业务事务内写本地消息表，由 OutboxSender 异步投递
func (s *WithdrawalService) enqueueEvent(ctx context.Context, tx *gorm.DB, topic string, withdrawal *model.Withdrawal) error {
	if topic == "" {
		return nil
	}

	payload := map[string]interface{}{
		"withdrawal_no": withdrawal.WithdrawalNo,
		"user_id":       withdrawal.UserID,
		"option_name":   withdrawal.OptionName,
		"amount":        withdrawal.Amount,
		"status":        withdrawal.Status,
		"occurred_at":   time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: withdrawal.WithdrawalNo,
		Topic:      topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
