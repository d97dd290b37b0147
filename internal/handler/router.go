package handler

import (
	"surveypay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api")
	{
		// 认证（无需登录）
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		// 用户
		users := api.Group("/users")
		users.Use(AuthMiddleware(h.authService))
		{
			users.GET("/me", h.Me)
			users.GET("/me/transactions", h.MyTransactions)
		}

		// 提现
		withdrawals := api.Group("/withdrawals")
		withdrawals.Use(AuthMiddleware(h.authService))
		{
			withdrawals.POST("", h.CreateWithdrawal)
			withdrawals.GET("/options", h.PayoutOptions)
		}

		// 管理端
		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(h.authService), AdminMiddleware())
		{
			admin.GET("/users", h.AdminListUsers)
			admin.PUT("/users/:id", h.AdminUpdateUser)
			admin.DELETE("/users/:id", h.AdminDeleteUser)
			admin.GET("/withdrawals", h.AdminListWithdrawals)
			admin.PUT("/withdrawals/:id", h.AdminResolveWithdrawal)
			admin.GET("/stats", h.AdminStats)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
