package repository

import (
	"context"

	"surveypay/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.BalanceTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.BalanceTransaction, int64, error) {
	var transactions []*model.BalanceTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BalanceTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumAmountByUserID 用户全部流水的净额，对账任务用它和当前余额比对
func (r *TransactionRepository) SumAmountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.BalanceTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListUserIDs 有流水记录的全部用户，供对账任务逐个核对
func (r *TransactionRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var userIDs []int64
	err := r.db.WithContext(ctx).
		Model(&model.BalanceTransaction{}).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *TransactionRepository) GetByWithdrawalNoAndType(ctx context.Context, withdrawalNo, transType string) (*model.BalanceTransaction, error) {
	var trans model.BalanceTransaction
	err := r.db.WithContext(ctx).
		Where("withdrawal_no = ? AND type = ?", withdrawalNo, transType).
		First(&trans).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}
