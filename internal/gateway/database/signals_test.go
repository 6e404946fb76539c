package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chanlun/internal/store"
)

func openTestStore(t *testing.T) *SignalLogStore {
	t.Helper()
	s, err := NewSignalLogStore(filepath.Join(t.TempDir(), "data", "signals.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSignalLogStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rec := store.SignalRecord{
		Symbol: "btcusdt", Name: "Bitcoin", Freq: "1d", Kind: store.KindFirstBuy,
		Power: "medium", Profit: 0.042, Date: day, Reason: "盘整背驰", Level: store.LevelStroke, Surfaced: true,
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, rec); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	ok, err := s.Exists(ctx, "BTCUSDT", day, "1d", store.LevelStroke, "")
	if err != nil || !ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}
	got, err := s.Lookup(ctx, "BTCUSDT", day, "1d", store.LevelStroke)
	if err != nil || got == nil {
		t.Fatalf("lookup: %v %v", got, err)
	}
	if got.ID == "" || got.Symbol != "BTCUSDT" || got.Kind != store.KindFirstBuy || got.Power != "medium" ||
		got.Profit != 0.042 || !got.Date.Equal(day) || !got.Surfaced || got.Level != store.LevelStroke {
		t.Fatalf("unexpected record %+v", got)
	}
	if none, _ := s.Lookup(ctx, "BTCUSDT", day.AddDate(0, 0, 1), "1d", ""); none != nil {
		t.Fatalf("expected nil lookup")
	}
}

func TestSignalLogStoreLatestAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, kind := range []store.SignalKind{store.KindFirstBuy, store.KindFirstBuy, store.KindThirdBuy} {
		rec := store.SignalRecord{Symbol: "ETHUSDT", Freq: "4h", Kind: kind, Date: base.AddDate(0, 0, i), Level: store.LevelSegment}
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	latest, err := s.Latest(ctx, "ETHUSDT", store.LevelSegment, store.KindFirstBuy)
	if err != nil || latest == nil || !latest.Date.Equal(base.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected latest %+v err=%v", latest, err)
	}
	if none, err := s.Latest(ctx, "ETHUSDT", "", store.KindSecondBuy); err != nil || none != nil {
		t.Fatalf("expected nil latest, got %+v err=%v", none, err)
	}
	list, err := s.List(ctx, store.Filter{Symbol: "ethusdt", Freq: "4h", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Kind != store.KindThirdBuy {
		t.Fatalf("unexpected list %+v", list)
	}
	since, _ := s.List(ctx, store.Filter{Since: base.AddDate(0, 0, 2)})
	if len(since) != 1 {
		t.Fatalf("expected 1 record since day 2, got %d", len(since))
	}
}

func TestSignalLogStoreSeparatesLevels(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "signals.db")
	s, err := NewSignalLogStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	strokeRec := store.SignalRecord{Symbol: "BTCUSDT", Freq: "1d", Kind: store.KindFirstBuy, Date: day, Level: store.LevelStroke}
	segRec := strokeRec
	segRec.Level = store.LevelSegment
	if err := s.Insert(ctx, strokeRec); err != nil {
		t.Fatalf("insert stroke: %v", err)
	}
	if err := s.Insert(ctx, segRec); err != nil {
		t.Fatalf("segment record should not collide with stroke record: %v", err)
	}
	_ = s.Close()

	// 重新打开后迁移再次执行，唯一键仍包含 level
	s, err = NewSignalLogStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s.Close()
	if err := s.Insert(ctx, segRec); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated segment record, got %v", err)
	}
	got, err := s.Lookup(ctx, "BTCUSDT", day, "1d", store.LevelSegment)
	if err != nil || got == nil || got.Level != store.LevelSegment {
		t.Fatalf("segment lookup: %+v err=%v", got, err)
	}
	if ok, _ := s.Exists(ctx, "BTCUSDT", day, "4h", store.LevelSegment, ""); ok {
		t.Fatalf("unexpected record for other freq")
	}
	latest, err := s.Latest(ctx, "BTCUSDT", store.LevelStroke, store.KindFirstBuy)
	if err != nil || latest == nil || latest.Level != store.LevelStroke {
		t.Fatalf("stroke latest: %+v err=%v", latest, err)
	}
	list, err := s.List(ctx, store.Filter{Level: store.LevelSegment})
	if err != nil || len(list) != 1 {
		t.Fatalf("segment list: %d err=%v", len(list), err)
	}
}

func TestSignalLogStoreConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	day := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Insert(ctx, store.SignalRecord{Symbol: "SOLUSDT", Freq: "1d", Kind: store.KindFirstBuy, Date: day})
			if err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
}

func TestSignalLogStoreMigrationIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddSignalLevelColumns(context.Background()); err != nil {
		t.Fatalf("second migration: %v", err)
	}
	if _, err := NewSignalLogStore(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
