package handler

import (
	"errors"
	"log"
	"strconv"

	"surveypay/internal/config"
	"surveypay/internal/repository"
	"surveypay/internal/service"
	"surveypay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService       *service.AuthService
	userService       *service.UserService
	withdrawalService *service.WithdrawalService
	adminService      *service.AdminService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		authService:       service.NewAuthService(db, cfg),
		userService:       service.NewUserService(db),
		withdrawalService: service.NewWithdrawalService(db, rdb, cfg),
		adminService:      service.NewAdminService(db),
	}
}

// writeError 把领域错误映射到 HTTP 状态码
// 未识别的错误一律 500，细节只进日志不出网
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidOption),
		errors.Is(err, service.ErrInvalidTargetStatus),
		errors.Is(err, service.ErrNegativeBalance),
		errors.Is(err, repository.ErrBalanceNotEnough),
		errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, repository.ErrWithdrawalStatusInvalid):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound):
		response.NotFound(c, err.Error())
	default:
		log.Printf("[Handler] 未处理错误: %v", err)
		response.ServerError(c)
	}
}

// ============================================================
// 认证相关接口
// ============================================================

// Register 注册
// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, result)
}

// Login 登录
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 用户相关接口
// ============================================================

// Me 当前用户资料 + 提现历史
// GET /api/users/me
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetInt64(ContextUserID)

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		// 令牌有效但用户已被删除，按会话失效处理，前端静默登出
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Unauthorized(c, "会话已失效")
			return
		}
		writeError(c, err)
		return
	}

	response.Success(c, profile)
}

// MyTransactions 当前用户的余额流水
// GET /api/users/me/transactions?page=1&page_size=20
func (h *Handler) MyTransactions(c *gin.Context) {
	userID := c.GetInt64(ContextUserID)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	history, err := h.userService.GetTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, history)
}

// ============================================================
// 提现相关接口
// ============================================================

// CreateWithdrawalRequest 提现申请
type CreateWithdrawalRequest struct {
	OptionName string `json:"optionName" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"` // 单位：分
}

// CreateWithdrawal 发起提现
// POST /api/withdrawals
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	userID := c.GetInt64(ContextUserID)

	withdrawal, err := h.withdrawalService.Request(c.Request.Context(), userID, req.OptionName, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, withdrawal)
}

// PayoutOptions 提现方式目录
// GET /api/withdrawals/options
func (h *Handler) PayoutOptions(c *gin.Context) {
	response.Success(c, gin.H{
		"options": h.withdrawalService.PayoutOptions(),
	})
}

// ============================================================
// 管理端接口
// ============================================================

// AdminListUsers 普通用户列表
// GET /api/admin/users
func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"users": users})
}

// AdminUpdateUserRequest 管理员修改用户
type AdminUpdateUserRequest struct {
	Name    string `json:"name" binding:"required"`
	Balance *int64 `json:"balance" binding:"required"` // 指针区分"传了0"和"没传"
}

// AdminUpdateUser 修改用户姓名和余额
// PUT /api/admin/users/:id
func (h *Handler) AdminUpdateUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.adminService.UpdateUser(c.Request.Context(), userID, req.Name, *req.Balance)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"user": user})
}

// AdminDeleteUser 删除用户（级联删除提现记录）
// DELETE /api/admin/users/:id
func (h *Handler) AdminDeleteUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "用户已删除"})
}

// AdminListWithdrawals 全部提现单（带申请人信息）
// GET /api/admin/withdrawals
func (h *Handler) AdminListWithdrawals(c *gin.Context) {
	withdrawals, err := h.adminService.ListWithdrawals(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"withdrawals": withdrawals})
}

// AdminResolveWithdrawalRequest 审核提现
type AdminResolveWithdrawalRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdminResolveWithdrawal 审核提现：Completed 通过 / Failed 驳回并退款
// PUT /api/admin/withdrawals/:id
func (h *Handler) AdminResolveWithdrawal(c *gin.Context) {
	withdrawalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	var req AdminResolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawalService.Resolve(c.Request.Context(), withdrawalID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, withdrawal)
}

// AdminStats 管理端看板统计
// GET /api/admin/stats
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, stats)
}
