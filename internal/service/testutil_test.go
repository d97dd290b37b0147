package service_test

import (
	"fmt"
	"testing"

	"surveypay/internal/config"
	"surveypay/internal/infrastructure/database"
	"surveypay/internal/model"
	"surveypay/pkg/idgen"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库
// 连接数限制为 1：SQLite 写并发能力弱，串行化后并发测试不会碰到 database is locked
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:      "test-secret",
			ExpireHours: 1,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				WithdrawalRequested: "test.withdrawal.requested",
				WithdrawalResolved:  "test.withdrawal.resolved",
			},
		},
		Business: config.BusinessConfig{
			SignupBonus:   100,
			MaxRetryCount: 3,
			PayoutOptions: []config.PayoutOption{
				{ID: "paypal", Name: "PayPal", MinAmount: 500},
			},
		},
	}
}

func seedUser(t *testing.T, db *gorm.DB, balance int64) *model.User {
	t.Helper()

	user := &model.User{
		ID:           idgen.NextID(),
		Name:         "Test User",
		Email:        fmt.Sprintf("user%d@example.com", idgen.NextID()),
		PasswordHash: "x",
		Balance:      balance,
		Role:         model.RoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

func getBalance(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()

	var user model.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("查询用户失败: %v", err)
	}
	return user.Balance
}

func countWithdrawals(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&model.Withdrawal{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("统计提现单失败: %v", err)
	}
	return count
}

func countTransactions(t *testing.T, db *gorm.DB, userID int64, transType string) int64 {
	t.Helper()

	var count int64
	err := db.Model(&model.BalanceTransaction{}).
		Where("user_id = ? AND type = ?", userID, transType).
		Count(&count).Error
	if err != nil {
		t.Fatalf("统计流水失败: %v", err)
	}
	return count
}
