package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gap 表示缺失的连续 K 线区间。
type Gap struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Count int       `json:"count"`
}

// IntegrityReport 描述 feed 的 K 线覆盖情况。
type IntegrityReport struct {
	Expected int   `json:"expected"`
	Present  int   `json:"present"`
	Gaps     []Gap `json:"gaps"`
}

func (r IntegrityReport) Complete() bool { return len(r.Gaps) == 0 }

// FreqDuration 解析 1m/15m/1h/4h/1d/1w 形式的周期。
func FreqDuration(freq string) (time.Duration, error) {
	freq = strings.TrimSpace(strings.ToLower(freq))
	if len(freq) < 2 {
		return 0, fmt.Errorf("周期非法: %q", freq)
	}
	n, err := strconv.Atoi(freq[:len(freq)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("周期非法: %q", freq)
	}
	unit := map[byte]time.Duration{'m': time.Minute, 'h': time.Hour, 'd': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[freq[len(freq)-1]]
	if unit == 0 {
		return 0, fmt.Errorf("周期单位非法: %q", freq)
	}
	return time.Duration(n) * unit, nil
}

// CheckIntegrity 按固定步长检查 bars 是否连续。
func CheckIntegrity(bars []*Bar, step time.Duration) IntegrityReport {
	report := IntegrityReport{Present: len(bars)}
	if len(bars) == 0 || step <= 0 {
		return report
	}
	first, last := bars[0].Time, bars[len(bars)-1].Time
	report.Expected = int(last.Sub(first)/step) + 1
	for i := 1; i < len(bars); i++ {
		missing := int(bars[i].Time.Sub(bars[i-1].Time)/step) - 1
		if missing <= 0 {
			continue
		}
		report.Gaps = append(report.Gaps, Gap{
			From:  bars[i-1].Time.Add(step),
			To:    bars[i].Time.Add(-step),
			Count: missing,
		})
	}
	return report
}

// Integrity 以 feed 自身的周期检查 K 线连续性。
func (f *Feed) Integrity() (IntegrityReport, error) {
	step, err := FreqDuration(f.Freq)
	if err != nil {
		return IntegrityReport{}, err
	}
	return CheckIntegrity(f.Bars, step), nil
}
