package repository

import (
	"context"
	"errors"
	"strings"

	"surveypay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailTaken       = errors.New("邮箱已被注册")
	ErrBalanceNotEnough = errors.New("余额不足")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(user).Error
	if err != nil && isDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	return err
}

// GetByID 查询用户
// 事务内调用必须传 tx：事务持有连接期间再从池里借连接读，
// 连接数紧张时会互相等死，余额快照也要和事务内的写保持一致
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListByRole 按角色查询用户列表（管理端只看普通用户，管理员账号不对外展示）
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

// Deduct 原子扣减余额
//
// 【关键点】扣款条件 balance >= amount 直接写进 UPDATE 的 WHERE 里，
// 由数据库行锁保证"检查+扣减"原子执行，并发请求不可能把余额扣成负数。
// RowsAffected == 0 时回查余额区分"余额不足"和"用户不存在"
func (r *UserRepository) Deduct(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		user, err := r.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrUserNotFound
	}

	return nil
}

// Increase 原子增加余额（提现驳回退款）
func (r *UserRepository) Increase(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateProfile 管理员直接修改用户姓名和余额（行政修正，不走提现状态机）
func (r *UserRepository) UpdateProfile(ctx context.Context, tx *gorm.DB, userID int64, name string, balance int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"name":    name,
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", userID).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}

// SumBalanceByRole 统计某角色用户的余额总和（管理端看板）
func (r *UserRepository) SumBalanceByRole(ctx context.Context, role string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role = ?", role).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	return total, err
}

// isDuplicateKeyError 兼容 MySQL(1062) 和 SQLite(UNIQUE constraint) 的唯一键冲突
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
