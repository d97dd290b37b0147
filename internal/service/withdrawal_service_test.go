package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"surveypay/internal/model"
	"surveypay/internal/repository"
	"surveypay/internal/service"
)

func TestRequestWithdrawalSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	withdrawal, err := svc.Request(context.Background(), user.ID, "PayPal", 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if withdrawal.Status != model.WithdrawalStatusPending {
		t.Errorf("期望状态 %s, 实际 %s", model.WithdrawalStatusPending, withdrawal.Status)
	}
	if withdrawal.Amount != 500 {
		t.Errorf("期望金额 500, 实际 %d", withdrawal.Amount)
	}
	if withdrawal.WithdrawalNo == "" {
		t.Error("提现单号不能为空")
	}

	if got := getBalance(t, db, user.ID); got != 9500 {
		t.Errorf("期望余额 9500, 实际 %d", got)
	}
	if got := countWithdrawals(t, db, user.ID); got != 1 {
		t.Errorf("期望 1 笔提现单, 实际 %d", got)
	}
	if got := countTransactions(t, db, user.ID, model.TransactionTypeWithdraw); got != 1 {
		t.Errorf("期望 1 条扣款流水, 实际 %d", got)
	}

	// 事件与业务同事务落库
	var outboxCount int64
	db.Model(&model.OutboxMessage{}).Where("message_key = ?", withdrawal.WithdrawalNo).Count(&outboxCount)
	if outboxCount != 1 {
		t.Errorf("期望 1 条待投递消息, 实际 %d", outboxCount)
	}
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 100)

	_, err := svc.Request(context.Background(), user.ID, "PayPal", 500)
	if !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Fatalf("期望 ErrBalanceNotEnough, 实际 %v", err)
	}

	if got := getBalance(t, db, user.ID); got != 100 {
		t.Errorf("余额不应变化, 期望 100, 实际 %d", got)
	}
	if got := countWithdrawals(t, db, user.ID); got != 0 {
		t.Errorf("不应创建提现单, 实际 %d 笔", got)
	}
}

func TestRequestWithdrawalInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	for _, amount := range []int64{0, -1, -500} {
		_, err := svc.Request(context.Background(), user.ID, "PayPal", amount)
		if !errors.Is(err, service.ErrInvalidAmount) {
			t.Errorf("amount=%d: 期望 ErrInvalidAmount, 实际 %v", amount, err)
		}
	}

	_, err := svc.Request(context.Background(), user.ID, "", 500)
	if !errors.Is(err, service.ErrInvalidOption) {
		t.Errorf("期望 ErrInvalidOption, 实际 %v", err)
	}

	if got := getBalance(t, db, user.ID); got != 10000 {
		t.Errorf("余额不应变化, 期望 10000, 实际 %d", got)
	}
	if got := countWithdrawals(t, db, user.ID); got != 0 {
		t.Errorf("不应创建提现单, 实际 %d 笔", got)
	}
}

func TestRequestWithdrawalUserNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())

	_, err := svc.Request(context.Background(), 12345, "PayPal", 500)
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("期望 ErrUserNotFound, 实际 %v", err)
	}
}

func TestResolveWithdrawalFailedRefunds(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	withdrawal, err := svc.Request(context.Background(), user.ID, "PayPal", 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := getBalance(t, db, user.ID); got != 9500 {
		t.Fatalf("扣款后期望余额 9500, 实际 %d", got)
	}

	resolved, err := svc.Resolve(context.Background(), withdrawal.ID, model.WithdrawalStatusFailed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if resolved.Status != model.WithdrawalStatusFailed {
		t.Errorf("期望状态 %s, 实际 %s", model.WithdrawalStatusFailed, resolved.Status)
	}

	// 扣款+退款对余额是恒等操作
	if got := getBalance(t, db, user.ID); got != 10000 {
		t.Errorf("退款后期望余额 10000, 实际 %d", got)
	}
	if got := countTransactions(t, db, user.ID, model.TransactionTypeRefund); got != 1 {
		t.Errorf("期望 1 条退款流水, 实际 %d", got)
	}

	// 退款流水的余额快照必须取自事务内，和入账前后的真实余额一致
	var refund model.BalanceTransaction
	err = db.Where("withdrawal_no = ? AND type = ?", withdrawal.WithdrawalNo, model.TransactionTypeRefund).
		First(&refund).Error
	if err != nil {
		t.Fatalf("查询退款流水失败: %v", err)
	}
	if refund.BalanceBefore != 9500 || refund.BalanceAfter != 10000 {
		t.Errorf("退款流水快照错误: before=%d after=%d, 期望 9500/10000", refund.BalanceBefore, refund.BalanceAfter)
	}
	if refund.Amount != 500 {
		t.Errorf("退款金额期望 500, 实际 %d", refund.Amount)
	}
}

func TestResolveWithdrawalCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	withdrawal, err := svc.Request(context.Background(), user.ID, "PayPal", 1000)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), withdrawal.ID, model.WithdrawalStatusCompleted)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if resolved.Status != model.WithdrawalStatusCompleted {
		t.Errorf("期望状态 %s, 实际 %s", model.WithdrawalStatusCompleted, resolved.Status)
	}

	// 打款成功不退余额
	if got := getBalance(t, db, user.ID); got != 9000 {
		t.Errorf("期望余额 9000, 实际 %d", got)
	}
	if got := countTransactions(t, db, user.ID, model.TransactionTypeRefund); got != 0 {
		t.Errorf("不应有退款流水, 实际 %d 条", got)
	}
}

func TestResolveWithdrawalTwice(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	withdrawal, err := svc.Request(context.Background(), user.ID, "PayPal", 1000)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if _, err := svc.Resolve(context.Background(), withdrawal.ID, model.WithdrawalStatusCompleted); err != nil {
		t.Fatalf("第一次 Resolve: %v", err)
	}

	// 终态只能进一次，重复审核必须失败且不动余额
	_, err = svc.Resolve(context.Background(), withdrawal.ID, model.WithdrawalStatusFailed)
	if !errors.Is(err, repository.ErrWithdrawalStatusInvalid) {
		t.Fatalf("期望 ErrWithdrawalStatusInvalid, 实际 %v", err)
	}

	if got := getBalance(t, db, user.ID); got != 9000 {
		t.Errorf("重复审核不应改变余额, 期望 9000, 实际 %d", got)
	}
}

func TestResolveWithdrawalNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())

	_, err := svc.Resolve(context.Background(), 12345, model.WithdrawalStatusCompleted)
	if !errors.Is(err, repository.ErrWithdrawalNotFound) {
		t.Fatalf("期望 ErrWithdrawalNotFound, 实际 %v", err)
	}
}

func TestResolveWithdrawalInvalidTarget(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 10000)

	withdrawal, err := svc.Request(context.Background(), user.ID, "PayPal", 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// Pending 不是合法目标状态
	_, err = svc.Resolve(context.Background(), withdrawal.ID, model.WithdrawalStatusPending)
	if !errors.Is(err, service.ErrInvalidTargetStatus) {
		t.Fatalf("期望 ErrInvalidTargetStatus, 实际 %v", err)
	}
}

// TestConcurrentWithdrawals 并发提现不得超扣
// 余额 1000，8 个并发请求各提 300，最多 3 笔能成功
func TestConcurrentWithdrawals(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewWithdrawalService(db, nil, newTestConfig())
	user := seedUser(t, db, 1000)

	const workers = 8
	const amount = 300

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Request(context.Background(), user.ID, "PayPal", amount)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, repository.ErrBalanceNotEnough) {
			t.Errorf("并发请求出现意外错误: %v", err)
		}
	}

	if succeeded == 0 {
		t.Fatal("至少应有一笔提现成功")
	}
	if succeeded > 3 {
		t.Fatalf("成功笔数 %d 超出余额允许的上限 3", succeeded)
	}

	wantBalance := int64(1000 - succeeded*amount)
	if got := getBalance(t, db, user.ID); got != wantBalance {
		t.Errorf("期望余额 %d, 实际 %d", wantBalance, got)
	}
	if got := getBalance(t, db, user.ID); got < 0 {
		t.Errorf("余额不允许为负, 实际 %d", got)
	}
	if got := countWithdrawals(t, db, user.ID); got != int64(succeeded) {
		t.Errorf("提现单数 %d 应等于成功笔数 %d", got, succeeded)
	}

	// 并发下每条扣款流水的余额快照仍要首尾相接：
	// 上一笔的 after 就是下一笔的 before，最终落在当前余额上
	var rows []*model.BalanceTransaction
	err := db.Where("user_id = ? AND type = ?", user.ID, model.TransactionTypeWithdraw).
		Order("balance_before DESC").
		Find(&rows).Error
	if err != nil {
		t.Fatalf("查询扣款流水失败: %v", err)
	}
	prev := int64(1000)
	for _, row := range rows {
		if row.BalanceBefore != prev {
			t.Errorf("流水快照断链: before=%d, 期望 %d", row.BalanceBefore, prev)
		}
		if row.BalanceAfter != row.BalanceBefore-amount {
			t.Errorf("流水快照错误: before=%d after=%d", row.BalanceBefore, row.BalanceAfter)
		}
		prev = row.BalanceAfter
	}
	if prev != wantBalance {
		t.Errorf("流水末笔 after=%d 应等于当前余额 %d", prev, wantBalance)
	}
}
