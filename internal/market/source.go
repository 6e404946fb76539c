package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FeedSource 统一对接外部的笔/分型数据提供方。
type FeedSource interface {
	// Load 返回指定 symbol+freq 的完整 Feed。
	Load(ctx context.Context, symbol, freq string) (*Feed, error)
	Name() string
}

// FileFeedSource 从目录读取 <symbol>_<freq>.json。
type FileFeedSource struct {
	Dir string
}

func NewFileFeedSource(dir string) *FileFeedSource { return &FileFeedSource{Dir: dir} }

func (s *FileFeedSource) Name() string { return "file" }

func (s *FileFeedSource) Path(symbol, freq string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(symbol), freq))
}

func (s *FileFeedSource) Load(ctx context.Context, symbol, freq string) (*Feed, error) {
	if symbol == "" || freq == "" {
		return nil, errors.New("symbol/freq 不能为空")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(symbol, freq))
	if err != nil {
		return nil, fmt.Errorf("打开 feed 文件失败: %w", err)
	}
	defer f.Close()
	feed, err := DecodeFeed(f)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", symbol, freq, err)
	}
	return feed, nil
}

type feedFile struct {
	Symbol  string       `json:"symbol"`
	Name    string       `json:"name"`
	Freq    string       `json:"freq"`
	Bars    []barJSON    `json:"bars"`
	Strokes []strokeJSON `json:"strokes"`
	Pending *pendingJSON `json:"pending,omitempty"`
	Fractal *fractalJSON `json:"fractal,omitempty"`
}

type barJSON struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// strokeJSON 用 bar 下标闭区间描述一笔；high/low 缺省时从 bars 推导。
type strokeJSON struct {
	Direction Direction `json:"direction"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	High      *float64  `json:"high,omitempty"`
	Low       *float64  `json:"low,omitempty"`
}

type pendingJSON struct {
	Direction Direction `json:"direction"`
	From      int       `json:"from"`
	Fractals  int       `json:"fractals"`
}

type fractalJSON struct {
	Mark  Mark `json:"mark"`
	Index int  `json:"index"` // 中间 K 线下标
}

// DecodeFeed 解析 JSON feed 并完成校验。
func DecodeFeed(r io.Reader) (*Feed, error) {
	var raw feedFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析 feed 失败: %w", err)
	}
	feed := &Feed{
		Symbol: strings.ToUpper(strings.TrimSpace(raw.Symbol)),
		Name:   raw.Name,
		Freq:   raw.Freq,
		Bars:   make([]*Bar, len(raw.Bars)),
	}
	for i, b := range raw.Bars {
		feed.Bars[i] = &Bar{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	n := len(feed.Bars)
	for i, s := range raw.Strokes {
		if s.From < 0 || s.To >= n || s.From > s.To {
			return nil, fmt.Errorf("stroke[%d] 区间越界: %d-%d", i, s.From, s.To)
		}
		bars := feed.Bars[s.From : s.To+1]
		lo, hi := barsRange(bars)
		if s.High != nil {
			hi = *s.High
		}
		if s.Low != nil {
			lo = *s.Low
		}
		feed.Strokes = append(feed.Strokes, Stroke{
			Symbol:    feed.Symbol,
			Direction: s.Direction,
			Start:     bars[0].Time,
			End:       bars[len(bars)-1].Time,
			High:      hi,
			Low:       lo,
			Bars:      bars,
		})
	}
	if p := raw.Pending; p != nil {
		if p.From < 0 || p.From >= n {
			return nil, fmt.Errorf("pending 起点越界: %d", p.From)
		}
		bars := feed.Bars[p.From:]
		lo, hi := barsRange(bars)
		feed.Pending = &PendingStroke{Direction: p.Direction, High: hi, Low: lo, Fractals: p.Fractals, Bars: bars}
	}
	if fx := raw.Fractal; fx != nil {
		if fx.Index < 1 || fx.Index+1 >= n {
			return nil, fmt.Errorf("fractal 下标越界: %d", fx.Index)
		}
		f := NewFractal(feed.Symbol, fx.Mark, feed.Bars[fx.Index-1], feed.Bars[fx.Index], feed.Bars[fx.Index+1])
		feed.Latest = &f
	}
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	return feed, nil
}

func barsRange(bars []*Bar) (lo, hi float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	lo, hi = bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	return lo, hi
}
