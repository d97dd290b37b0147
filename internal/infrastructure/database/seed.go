package database

import (
	"context"
	"errors"
	"log"

	"surveypay/internal/config"
	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/pkg/idgen"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin 幂等创建管理员账号
// 管理员不参与提现和余额统计，只用于后台审核，因此余额固定为 0
func SeedAdmin(ctx context.Context, db *gorm.DB, cfg *config.AdminConfig) error {
	userRepo := repository.NewUserRepository(db)

	_, err := userRepo.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		ID:           idgen.NextID(),
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		Balance:      0,
		Role:         model.RoleAdmin,
	}

	if err := userRepo.Create(ctx, nil, admin); err != nil {
		// 并发启动时另一实例可能已经建好
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil
		}
		return err
	}

	log.Printf("管理员账号已创建: %s", cfg.Email)
	return nil
}
