package redislock

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewFromAddr(context.Background(), "  ", "", 0, Options{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

// 需要本地 redis：CHANLUN_REDIS_ADDR=127.0.0.1:6379
func TestLockerExclusive(t *testing.T) {
	addr := os.Getenv("CHANLUN_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHANLUN_REDIS_ADDR 未设置")
	}
	ctx := context.Background()
	l, err := NewFromAddr(ctx, addr, "", 0, Options{Prefix: "chanlun:test:", TTL: 5 * time.Second, Retry: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer l.Close()

	unlock, err := l.Lock(ctx, "BTCUSDT@1d")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(waitCtx, "BTCUSDT@1d"); err == nil {
		t.Fatalf("second lock should time out while held")
	}
	unlock()
	unlock2, err := l.Lock(ctx, "BTCUSDT@1d")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	unlock2()
}
