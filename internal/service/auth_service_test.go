package service_test

import (
	"context"
	"errors"
	"testing"

	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/internal/service"
)

func TestRegisterGrantsSignupBonus(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := service.NewAuthService(db, cfg)

	result, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name:     "张三",
		Email:    "zhangsan@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if result.Token == "" {
		t.Error("注册应直接返回令牌")
	}
	if result.User.Balance != cfg.Business.SignupBonus {
		t.Errorf("期望初始余额 %d, 实际 %d", cfg.Business.SignupBonus, result.User.Balance)
	}
	if result.User.Role != model.RoleUser {
		t.Errorf("期望角色 %s, 实际 %s", model.RoleUser, result.User.Role)
	}
	if result.User.PasswordHash == "secret123" {
		t.Error("密码必须哈希存储")
	}

	if got := countTransactions(t, db, result.User.ID, model.TransactionTypeSignupBonus); got != 1 {
		t.Errorf("期望 1 条注册赠送流水, 实际 %d", got)
	}

	// 令牌能被自己校验通过
	claims, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("令牌 userID 期望 %d, 实际 %d", result.User.ID, claims.UserID)
	}
	if claims.Role != model.RoleUser {
		t.Errorf("令牌角色期望 %s, 实际 %s", model.RoleUser, claims.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewAuthService(db, newTestConfig())

	req := &service.RegisterRequest{Name: "张三", Email: "dup@example.com", Password: "secret123"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("第一次注册: %v", err)
	}

	_, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name:     "李四",
		Email:    "dup@example.com",
		Password: "another123",
	})
	if !errors.Is(err, repository.ErrEmailTaken) {
		t.Fatalf("期望 ErrEmailTaken, 实际 %v", err)
	}
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewAuthService(db, newTestConfig())

	if _, err := svc.Register(context.Background(), &service.RegisterRequest{
		Name:     "张三",
		Email:    "login@example.com",
		Password: "secret123",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.Login(context.Background(), &service.LoginRequest{
		Email:    "login@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" {
		t.Error("登录应返回令牌")
	}

	// 密码错误与用户不存在必须是同一个错误
	_, err = svc.Login(context.Background(), &service.LoginRequest{
		Email:    "login@example.com",
		Password: "wrongpass",
	})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("密码错误: 期望 ErrInvalidCredentials, 实际 %v", err)
	}

	_, err = svc.Login(context.Background(), &service.LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("用户不存在: 期望 ErrInvalidCredentials, 实际 %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := service.NewAuthService(newTestDB(t), newTestConfig())

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ValidateToken(token); !errors.Is(err, service.ErrInvalidToken) {
			t.Errorf("token=%q: 期望 ErrInvalidToken, 实际 %v", token, err)
		}
	}
}

func TestValidateTokenExpired(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.JWT.ExpireHours = -1 // 签出来就已过期
	svc := service.NewAuthService(db, cfg)

	user := seedUser(t, db, 0)
	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("过期令牌: 期望 ErrInvalidToken, 实际 %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := service.NewAuthService(db, cfg)

	user := seedUser(t, db, 0)
	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := newTestConfig()
	other.JWT.Secret = "different-secret"
	otherSvc := service.NewAuthService(db, other)

	if _, err := otherSvc.ValidateToken(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("密钥不匹配: 期望 ErrInvalidToken, 实际 %v", err)
	}
}
