package segment

import (
	"time"

	"chanlun/internal/market"
)

// MinStrokes 线段至少包含的笔数。
const MinStrokes = 3

// Segment 线段。End 为 -1 表示尚未完结。
type Segment struct {
	Symbol       string
	Strokes      []market.Stroke
	Start        int
	End          int
	StartFractal *FeatureFractal
	EndFractal   *FeatureFractal
}

func (s Segment) Direction() market.Direction {
	if len(s.Strokes) == 0 {
		return ""
	}
	return s.Strokes[0].Direction
}

func (s Segment) Closed() bool { return s.End >= s.Start && s.End >= 0 }

// Valid 已完结、至少三笔且第一笔与第三笔之间无缺口。
func (s Segment) Valid() bool {
	return s.Closed() && len(s.Strokes) >= MinStrokes && !strokesGap(s.Strokes[0], s.Strokes[2])
}

func (s Segment) High() float64 {
	var hi float64
	for i, st := range s.Strokes {
		if i == 0 || st.High > hi {
			hi = st.High
		}
	}
	return hi
}

func (s Segment) Low() float64 {
	var lo float64
	for i, st := range s.Strokes {
		if i == 0 || st.Low < lo {
			lo = st.Low
		}
	}
	return lo
}

func (s Segment) PriceRange() (low, high float64) { return s.Low(), s.High() }
func (s Segment) Trend() market.Direction         { return s.Direction() }

func (s Segment) Begin() time.Time {
	if len(s.Strokes) == 0 {
		return time.Time{}
	}
	return s.Strokes[0].Start
}

func (s Segment) Finish() time.Time {
	if len(s.Strokes) == 0 {
		return time.Time{}
	}
	return s.Strokes[len(s.Strokes)-1].End
}

// RawBars 按时间拼接成员笔的 K 线，相邻笔共享的端点 K 线只保留一次。
func (s Segment) RawBars() []*market.Bar {
	var out []*market.Bar
	for _, st := range s.Strokes {
		for _, b := range st.Bars {
			if n := len(out); n > 0 && out[n-1] == b {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}
