package database

import (
	"context"
	"fmt"
)

const schemaSignals = `
CREATE TABLE IF NOT EXISTS signals (
    id          TEXT PRIMARY KEY,
    symbol      TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    freq        TEXT NOT NULL,
    kind        TEXT NOT NULL,
    power       TEXT NOT NULL DEFAULT '',
    profit      REAL NOT NULL DEFAULT 0,
    date        INTEGER NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
)`

func (s *SignalLogStore) init(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, q := range pragmas {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", q, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSignals); err != nil {
		return fmt.Errorf("建表 signals 失败: %w", err)
	}
	if err := s.AddSignalLevelColumns(ctx); err != nil {
		return err
	}
	indexes := []string{
		// 旧唯一键不含 level，会让笔与线段级别的记录互相冲突
		"DROP INDEX IF EXISTS ux_signals_key",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_signals_level_key ON signals(symbol, date, freq, level, kind)",
		"CREATE INDEX IF NOT EXISTS ix_signals_symbol_kind ON signals(symbol, kind, date)",
	}
	for _, q := range indexes {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("建索引失败: %w", err)
		}
	}
	return nil
}

// AddSignalLevelColumns 为 signals 添加 level/surfaced 列（幂等）。
func (s *SignalLogStore) AddSignalLevelColumns(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	queries := []string{
		"ALTER TABLE signals ADD COLUMN level TEXT NOT NULL DEFAULT 'stroke'",
		"ALTER TABLE signals ADD COLUMN surfaced INTEGER NOT NULL DEFAULT 1",
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			// 忽略已存在错误
			continue
		}
	}
	return nil
}
