package repository

import (
	"context"
	"errors"

	"surveypay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound      = errors.New("提现单不存在")
	ErrWithdrawalStatusInvalid = errors.New("提现单状态不合法")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, withdrawal *model.Withdrawal) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(withdrawal).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var withdrawal model.Withdrawal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &withdrawal, nil
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	var withdrawals []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&withdrawals).Error
	return withdrawals, err
}

// ListAll 管理端列表，带申请人信息
func (r *WithdrawalRepository) ListAll(ctx context.Context) ([]*model.Withdrawal, error) {
	var withdrawals []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&withdrawals).Error
	return withdrawals, err
}

// UpdateStatus 条件更新提现状态
//
// 【关键点】WHERE 里带上 fromStatus，两个管理员并发处理同一笔提现时，
// 只有一个 UPDATE 能命中行，输掉的一方拿到 ErrWithdrawalStatusInvalid。
// 终态（Completed / Failed）不再允许任何流转
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}

	return nil
}

// DeleteByUserID 删除用户时级联删除其全部提现记录
func (r *WithdrawalRepository) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Withdrawal{}).Error
}

func (r *WithdrawalRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// SumAmountByStatus 按状态统计提现总额（管理端看板用：已打款总额）
func (r *WithdrawalRepository) SumAmountByStatus(ctx context.Context, status string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("status = ?", status).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
