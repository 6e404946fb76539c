package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chanlun/internal/logger"
)

// releaseScript 只删除自己持有的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Options 锁参数。锁不续期，TTL 须大于持锁方单次处理的超时。
type Options struct {
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
}

// Locker 基于 SET NX PX 的跨进程 key 锁，满足 store.KeyLocker。
type Locker struct {
	client redis.UniversalClient
	opts   Options
}

func New(client redis.UniversalClient, opts Options) (*Locker, error) {
	if client == nil {
		return nil, errors.New("redis client 不能为空")
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 50 * time.Millisecond
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "chanlun:lock:"
	}
	return &Locker{client: client, opts: opts}, nil
}

// NewFromAddr 按地址创建客户端并 PING 一次。
func NewFromAddr(ctx context.Context, addr, password string, db int, opts Options) (*Locker, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis addr 不能为空")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, opts)
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.opts.Prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, full, token, l.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", full, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.Retry):
		}
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// 调用方 ctx 可能已取消，释放使用独立超时
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{full}, token).Err(); err != nil {
			logger.Warnf("[redislock] 释放 %s 失败: %v", full, err)
		}
	}, nil
}

func (l *Locker) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
