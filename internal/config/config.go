package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WithdrawalRequested string `mapstructure:"withdrawal_requested"`
	WithdrawalResolved  string `mapstructure:"withdrawal_resolved"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"` // 令牌有效期（小时），默认 30 天
}

// AdminConfig 启动时幂等创建的管理员账号
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type BusinessConfig struct {
	SignupBonus       int64          `mapstructure:"signup_bonus"` // 注册赠送余额（分）
	MaxRetryCount     int            `mapstructure:"max_retry_count"`
	AuditIntervalSecs int            `mapstructure:"audit_interval_secs"`
	PayoutOptions     []PayoutOption `mapstructure:"payout_options"`
}

// PayoutOption 提现方式目录项
// min_amount 仅供前端展示，服务端不做强校验（历史单用 option_name 快照解耦）
type PayoutOption struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	MinAmount   int64  `mapstructure:"min_amount" json:"min_amount"`
	Description string `mapstructure:"description" json:"description"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if config.JWT.ExpireHours <= 0 {
		config.JWT.ExpireHours = 24 * 30
	}

	GlobalConfig = config
	return config
}
