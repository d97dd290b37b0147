package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"surveypay/internal/config"
	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/pkg/idgen"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidToken       = errors.New("令牌无效或已过期")
)

// Claims JWT 载荷：用户ID + 角色
// 有效期 30 天，过期后只能重新登录，不提供刷新机制
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register 注册新用户
// 建用户和记注册赠送流水在同一个事务里，保证流水净额 == 当前余额
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		ID:           idgen.NextID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Balance:      s.cfg.Business.SignupBonus,
		Role:         model.RoleUser,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}

		if s.cfg.Business.SignupBonus <= 0 {
			return nil
		}

		transaction := &model.BalanceTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        user.ID,
			Amount:        s.cfg.Business.SignupBonus,
			Type:          model.TransactionTypeSignupBonus,
			BalanceBefore: 0,
			BalanceAfter:  s.cfg.Business.SignupBonus,
			Remark:        "注册赠送",
		}
		return s.transactionRepo.Create(ctx, tx, transaction)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	log.Printf("用户注册成功: userID=%d, email=%s", user.ID, user.Email)

	return &AuthResult{User: user, Token: token}, nil
}

// Login 登录
// 用户不存在和密码错误返回同一个错误，不给撞库者提示
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GenerateToken 签发 JWT
func (s *AuthService) GenerateToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

// ValidateToken 校验 JWT 并取出载荷
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
