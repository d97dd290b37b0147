package job

import (
	"context"
	"log"
	"time"

	"surveypay/internal/config"
	"surveypay/internal/repository"

	"gorm.io/gorm"
)

// LedgerAuditJob 对账任务
//
// 系统不变式：每个用户的流水净额 == 当前余额
// （注册赠送 + 退款 + 管理员调增）-（提现 + 管理员调减）= balance
//
// 任务只核对、只报警、不修数——对出不平说明某条链路绕过了流水记录，
// 需要人工排查，自动"修平"只会掩盖 bug
type LedgerAuditJob struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	stopCh          chan struct{}
	interval        time.Duration
}

func NewLedgerAuditJob(db *gorm.DB, cfg *config.Config) *LedgerAuditJob {
	interval := time.Duration(cfg.Business.AuditIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &LedgerAuditJob{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		stopCh:          make(chan struct{}),
		interval:        interval,
	}
}

func (j *LedgerAuditJob) Start(ctx context.Context) {
	log.Println("[LedgerAuditJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerAuditJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LedgerAuditJob] 任务停止")
			return
		case <-ticker.C:
			j.auditOnce(ctx)
		}
	}
}

func (j *LedgerAuditJob) Stop() {
	close(j.stopCh)
}

func (j *LedgerAuditJob) auditOnce(ctx context.Context) {
	userIDs, err := j.transactionRepo.ListUserIDs(ctx)
	if err != nil {
		log.Printf("[LedgerAuditJob] 查询用户列表失败: %v", err)
		return
	}

	mismatch := 0
	for _, userID := range userIDs {
		user, err := j.userRepo.GetByID(ctx, nil, userID)
		if err != nil {
			// 用户已被管理员删除，流水留作审计，跳过
			continue
		}

		sum, err := j.transactionRepo.SumAmountByUserID(ctx, userID)
		if err != nil {
			log.Printf("[LedgerAuditJob] 汇总流水失败: userID=%d, err=%v", userID, err)
			continue
		}

		if sum != user.Balance {
			mismatch++
			log.Printf("[LedgerAuditJob] 对账不平: userID=%d, 流水净额=%d, 当前余额=%d",
				userID, sum, user.Balance)
		}
	}

	if mismatch > 0 {
		log.Printf("[LedgerAuditJob] 本轮发现 %d 个账户对账不平", mismatch)
	}
}
