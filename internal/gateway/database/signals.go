package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chanlun/internal/store"
)

var _ store.SignalStore = (*SignalLogStore)(nil)

func (s *SignalLogStore) Exists(ctx context.Context, symbol string, date time.Time, freq string, level store.Level, kind store.SignalKind) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	return exists(ctx, db, store.NormalizeSymbol(symbol), date, freq, level, kind)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q querier, symbol string, date time.Time, freq string, level store.Level, kind store.SignalKind) (bool, error) {
	query := `SELECT 1 FROM signals WHERE symbol=? AND date=? AND freq=?`
	args := []any{symbol, date.UnixMilli(), freq}
	if level != "" {
		query += " AND level=?"
		args = append(args, string(level))
	}
	if kind != "" {
		query += " AND kind=?"
		args = append(args, string(kind))
	}
	var one int
	err := q.QueryRowContext(ctx, query+" LIMIT 1", args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert 在同一事务内先查后写；唯一索引兜底并发写入。
func (s *SignalLogStore) Insert(ctx context.Context, rec store.SignalRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	rec.Symbol = store.NormalizeSymbol(rec.Symbol)
	rec.Level = rec.Level.OrDefault()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	dup, err := exists(ctx, tx, rec.Symbol, rec.Date, rec.Freq, rec.Level, rec.Kind)
	if err != nil {
		return err
	}
	if dup {
		return store.ErrDuplicate
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO signals (`+signalColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Symbol, rec.Name, rec.Freq, string(rec.Kind), string(rec.Power), rec.Profit,
		rec.Date.UnixMilli(), rec.Reason, string(rec.Level), boolInt(rec.Surfaced), rec.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicate
		}
		return fmt.Errorf("写入 signals 失败: %w", err)
	}
	return tx.Commit()
}

func (s *SignalLogStore) Latest(ctx context.Context, symbol string, level store.Level, kind store.SignalKind) (*store.SignalRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + signalColumns + ` FROM signals WHERE symbol=?`
	args := []any{store.NormalizeSymbol(symbol)}
	if level != "" {
		query += " AND level=?"
		args = append(args, string(level))
	}
	if kind != "" {
		query += " AND kind=?"
		args = append(args, string(kind))
	}
	query += " ORDER BY date DESC LIMIT 1"
	rec, err := scanSignal(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SignalLogStore) Lookup(ctx context.Context, symbol string, date time.Time, freq string, level store.Level) (*store.SignalRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + signalColumns + ` FROM signals WHERE symbol=? AND date=? AND freq=?`
	args := []any{store.NormalizeSymbol(symbol), date.UnixMilli(), freq}
	if level != "" {
		query += " AND level=?"
		args = append(args, string(level))
	}
	rec, err := scanSignal(db.QueryRowContext(ctx, query+" ORDER BY created_at ASC LIMIT 1", args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 按 date 倒序。
func (s *SignalLogStore) List(ctx context.Context, f store.Filter) ([]store.SignalRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	where := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if sym := store.NormalizeSymbol(f.Symbol); sym != "" {
		where = append(where, "symbol=?")
		args = append(args, sym)
	}
	if f.Freq != "" {
		where = append(where, "freq=?")
		args = append(args, f.Freq)
	}
	if f.Kind != "" {
		where = append(where, "kind=?")
		args = append(args, string(f.Kind))
	}
	if f.Level != "" {
		where = append(where, "level=?")
		args = append(args, string(f.Level))
	}
	if !f.Since.IsZero() {
		where = append(where, "date>=?")
		args = append(args, f.Since.UnixMilli())
	}
	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
