package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"chanlun/internal/market"
)

type SignalKind string

const (
	KindConsolidationDivergence SignalKind = "consolidation-divergence"
	KindFirstBuy                SignalKind = "first-buy"
	KindSecondBuy               SignalKind = "second-buy"
	KindThirdBuy                SignalKind = "third-buy"
	KindOther                   SignalKind = "other"
)

// Level 分析级别：笔或线段。
type Level string

const (
	LevelStroke  Level = "stroke"
	LevelSegment Level = "segment"
)

// OrDefault 空级别按笔处理。
func (l Level) OrDefault() Level {
	if l == "" {
		return LevelStroke
	}
	return l
}

// ErrDuplicate 同一 (symbol, date, freq, level, kind) 已存在记录。
var ErrDuplicate = errors.New("signal already recorded")

// SignalRecord 写入后不再修改。Date 为触发分型的时间。
type SignalRecord struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name,omitempty"`
	Freq      string       `json:"freq"`
	Kind      SignalKind   `json:"kind"`
	Power     market.Power `json:"power"`
	Profit    float64      `json:"profit"`
	Date      time.Time    `json:"date"`
	Reason    string       `json:"reason,omitempty"`
	Level     Level        `json:"level"`
	Surfaced  bool         `json:"surfaced"`
	CreatedAt time.Time    `json:"created_at"`
}

// Filter List 查询条件，零值字段不参与过滤。
type Filter struct {
	Symbol string
	Freq   string
	Kind   SignalKind
	Level  Level
	Since  time.Time
	Limit  int
}

// SignalStore 信号去重存储，笔与线段级别的记录互不干扰。
// kind 为空时匹配任意类型，level 为空时匹配任意级别。
type SignalStore interface {
	Exists(ctx context.Context, symbol string, date time.Time, freq string, level Level, kind SignalKind) (bool, error)
	Insert(ctx context.Context, rec SignalRecord) error
	Latest(ctx context.Context, symbol string, level Level, kind SignalKind) (*SignalRecord, error)
	Lookup(ctx context.Context, symbol string, date time.Time, freq string, level Level) (*SignalRecord, error)
	List(ctx context.Context, f Filter) ([]SignalRecord, error)
}

func NormalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Validate 写入前的基本校验。
func (r SignalRecord) Validate() error {
	if NormalizeSymbol(r.Symbol) == "" {
		return errors.New("symbol 不能为空")
	}
	if strings.TrimSpace(r.Freq) == "" {
		return errors.New("freq 不能为空")
	}
	if r.Kind == "" {
		return errors.New("kind 不能为空")
	}
	if r.Date.IsZero() {
		return errors.New("date 不能为空")
	}
	return nil
}

// MemorySignalStore 内存实现，测试与单机运行使用。
type MemorySignalStore struct {
	mu      sync.RWMutex
	records []SignalRecord
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{}
}

func (s *MemorySignalStore) Exists(ctx context.Context, symbol string, date time.Time, freq string, level Level, kind SignalKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(NormalizeSymbol(symbol), date, freq, level, kind) >= 0, nil
}

// Insert 存在即返回 ErrDuplicate，检查与写入在同一把锁内完成。
func (s *MemorySignalStore) Insert(ctx context.Context, rec SignalRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.Symbol = NormalizeSymbol(rec.Symbol)
	rec.Level = rec.Level.OrDefault()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(rec.Symbol, rec.Date, rec.Freq, rec.Level, rec.Kind) >= 0 {
		return ErrDuplicate
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemorySignalStore) Latest(ctx context.Context, symbol string, level Level, kind SignalKind) (*SignalRecord, error) {
	sym := NormalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *SignalRecord
	for i := range s.records {
		r := &s.records[i]
		if r.Symbol != sym || (kind != "" && r.Kind != kind) || (level != "" && r.Level != level) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *MemorySignalStore) Lookup(ctx context.Context, symbol string, date time.Time, freq string, level Level) (*SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.find(NormalizeSymbol(symbol), date, freq, level, "")
	if idx < 0 {
		return nil, nil
	}
	out := s.records[idx]
	return &out, nil
}

// List 按 Date 倒序返回。
func (s *MemorySignalStore) List(ctx context.Context, f Filter) ([]SignalRecord, error) {
	sym := NormalizeSymbol(f.Symbol)
	s.mu.RLock()
	out := make([]SignalRecord, 0, len(s.records))
	for _, r := range s.records {
		if sym != "" && r.Symbol != sym {
			continue
		}
		if f.Freq != "" && r.Freq != f.Freq {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Level != "" && r.Level != f.Level {
			continue
		}
		if !f.Since.IsZero() && r.Date.Before(f.Since) {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemorySignalStore) find(symbol string, date time.Time, freq string, level Level, kind SignalKind) int {
	for i, r := range s.records {
		if r.Symbol != symbol || r.Freq != freq || !r.Date.Equal(date) {
			continue
		}
		if (kind == "" || r.Kind == kind) && (level == "" || r.Level == level) {
			return i
		}
	}
	return -1
}
