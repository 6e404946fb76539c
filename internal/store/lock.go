package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyLocker 按 key 串行化“先查后写”。unlock 必须调用且只调用一次。
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SignalKey 去重锁的 key：symbol@freq/level#date。
func SignalKey(symbol, freq string, level Level, date time.Time) string {
	return fmt.Sprintf("%s@%s/%s#%d", NormalizeSymbol(symbol), freq, level.OrDefault(), date.UnixMilli())
}

// MemoryKeyLocker 进程内实现。
type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{locks: make(map[string]*keyLock)}
}

func (l *MemoryKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryKeyLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
