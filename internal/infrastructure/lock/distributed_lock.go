package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"surveypay/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：用户A网络抖动重复提交，同时发起两笔提现请求
//
// 如果没有分布式锁：
//   goroutine1: 查询余额=100 -> 扣款100 -> 余额=0   OK
//   goroutine2: 查询余额=100 -> 扣款100 -> 余额=-100 超扣了！
//
// 加了分布式锁：
//   goroutine1: 获取锁 -> 查询余额=100 -> 扣款100 -> 余额=0 -> 释放锁
//   goroutine2: 获取锁失败，等待... -> 获取锁 -> 查询余额=0 -> 余额不足，拒绝
//
// 锁是第一道防线，最终兜底靠数据库里 balance >= amount 的条件更新，
// 即使 Redis 不可用也不会把余额扣成负数
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 过期时间，防止持有者崩溃导致死锁
//
// ============================================================================

var ErrLockFailed = errors.New("获取锁失败")

// DistributedLock Redis 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】Lua 脚本保证"检查+删除"原子执行：
// A 的锁过期后 B 拿到锁，A 迟到的 Unlock 发现 value 不是自己的，不会误删 B 的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewWithdrawLock 创建提现锁（按用户维度）
//
// 按用户加锁：不同用户可以并发提现，同一用户的并发请求串行化——
// 这正是防超扣想要的粒度
func NewWithdrawLock(client *redis.Client, userID int64, withdrawalNo string) *DistributedLock {
	key := fmt.Sprintf("withdraw:lock:user:%d", userID)
	// value 使用提现单号，便于追踪是哪个请求持有锁
	return NewDistributedLock(client, key, withdrawalNo, 30*time.Second)
}

// NewResolveLock 创建审核锁（按提现单维度）
// 两个管理员同时处理同一笔提现时串行化，输家会看到单子已不是 Pending。
// value 必须每次唯一，否则锁过期后迟到的 Unlock 会误删新持有者的锁
func NewResolveLock(client *redis.Client, withdrawalID int64) *DistributedLock {
	key := fmt.Sprintf("withdraw:lock:resolve:%d", withdrawalID)
	holder := strconv.FormatInt(idgen.NextID(), 10)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
