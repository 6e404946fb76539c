package market

import (
	"errors"
	"fmt"
	"time"
)

// Feed 单个 symbol+freq 的分析输入：原始 K 线、已完成的笔、未完成笔与最近分型。
type Feed struct {
	Symbol  string
	Name    string
	Freq    string
	Bars    []*Bar
	Strokes []Stroke
	Pending *PendingStroke
	Latest  *Fractal
}

// Key 与存储层保持一致的 symbol@freq。
func (f *Feed) Key() string { return f.Symbol + "@" + f.Freq }

func (f *Feed) Validate() error {
	if f == nil {
		return errors.New("feed 不能为空")
	}
	if f.Symbol == "" || f.Freq == "" {
		return errors.New("symbol/freq 不能为空")
	}
	for i := 1; i < len(f.Bars); i++ {
		if !f.Bars[i].Time.After(f.Bars[i-1].Time) {
			return fmt.Errorf("%s bars 时间未严格递增: index=%d", f.Key(), i)
		}
	}
	for i, s := range f.Strokes {
		if s.Direction != Up && s.Direction != Down {
			return fmt.Errorf("%s stroke[%d] 方向非法: %q", f.Key(), i, s.Direction)
		}
		if s.High < s.Low {
			return fmt.Errorf("%s stroke[%d] high<low", f.Key(), i)
		}
		if i > 0 && f.Strokes[i-1].Direction == s.Direction {
			return fmt.Errorf("%s stroke[%d] 与前一笔同向", f.Key(), i)
		}
	}
	return nil
}

// LastPrice 最新收盘价。
func (f *Feed) LastPrice() float64 {
	if f == nil || len(f.Bars) == 0 {
		return 0
	}
	return f.Bars[len(f.Bars)-1].Close
}

// BarsSince 返回 t 之后出现的 K 线数量。
func (f *Feed) BarsSince(t time.Time) int {
	n := 0
	for i := len(f.Bars) - 1; i >= 0; i-- {
		if !f.Bars[i].Time.After(t) {
			break
		}
		n++
	}
	return n
}

// AsOf 返回截至 t 的视图：去掉 t 之后的 K 线和结束于 t 之后的笔。
// 未完成笔与最近分型原样保留，由调用方判断是否越过 t。零值 t 返回 f 本身。
func (f *Feed) AsOf(t time.Time) *Feed {
	if f == nil || t.IsZero() {
		return f
	}
	view := *f
	n := len(f.Bars)
	for n > 0 && f.Bars[n-1].Time.After(t) {
		n--
	}
	view.Bars = f.Bars[:n]
	m := len(f.Strokes)
	for m > 0 && f.Strokes[m-1].End.After(t) {
		m--
	}
	view.Strokes = f.Strokes[:m]
	return &view
}
