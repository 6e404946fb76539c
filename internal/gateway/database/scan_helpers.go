package database

import (
	"time"

	"chanlun/internal/market"
	"chanlun/internal/store"
)

const signalColumns = `id, symbol, name, freq, kind, power, profit, date, reason, level, surfaced, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(r rowScanner) (store.SignalRecord, error) {
	var (
		rec              store.SignalRecord
		kind, power, lvl string
		date, created    int64
		surfaced         int
	)
	if err := r.Scan(&rec.ID, &rec.Symbol, &rec.Name, &rec.Freq, &kind, &power, &rec.Profit,
		&date, &rec.Reason, &lvl, &surfaced, &created); err != nil {
		return rec, err
	}
	rec.Kind = store.SignalKind(kind)
	rec.Power = market.Power(power)
	rec.Level = store.Level(lvl)
	rec.Surfaced = surfaced != 0
	rec.Date = time.UnixMilli(date).UTC()
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
