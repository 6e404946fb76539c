package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"chanlun/internal/logger"
)

// SignalLogStore 基于 sqlite 的信号存储。
type SignalLogStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSignalLogStore 打开（或创建）path 处的数据库并完成建表。
func NewSignalLogStore(path string) (*SignalLogStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path 不能为空")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接：事务内的先查后写天然串行
	db.SetMaxOpenConns(1)
	s := &SignalLogStore{db: db, path: path}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Infof("[signals] sqlite 已就绪: %s", path)
	return s, nil
}

func (s *SignalLogStore) handle() (*sql.DB, error) {
	if s == nil {
		return nil, fmt.Errorf("signal log store 未初始化")
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("signal log store 未初始化")
	}
	return db, nil
}

func (s *SignalLogStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
