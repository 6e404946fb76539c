package pivot

import (
	"errors"
	"fmt"
	"time"

	"chanlun/internal/market"
)

var (
	ErrNoPivot             = errors.New("no pivot")
	ErrStructuralAmbiguity = errors.New("structural ambiguity")
)

// Member 中枢成员：笔或线段。
type Member interface {
	PriceRange() (low, high float64)
	Trend() market.Direction
	RawBars() []*market.Bar
	Begin() time.Time
}

// Pivot 中枢。zg/zd 取前三个成员，不足三个时取已有成员。
type Pivot[M Member] struct {
	Members []M
}

func New[M Member](members []M) Pivot[M] {
	return Pivot[M]{Members: members}
}

func (p Pivot[M]) Len() int { return len(p.Members) }

func (p Pivot[M]) head() []M {
	if len(p.Members) > 3 {
		return p.Members[:3]
	}
	return p.Members
}

// ZG 中枢上沿：前三个成员高点的最小值。
func (p Pivot[M]) ZG() float64 {
	var zg float64
	for i, m := range p.head() {
		_, hi := m.PriceRange()
		if i == 0 || hi < zg {
			zg = hi
		}
	}
	return zg
}

// ZD 中枢下沿：前三个成员低点的最大值。
func (p Pivot[M]) ZD() float64 {
	var zd float64
	for i, m := range p.head() {
		lo, _ := m.PriceRange()
		if i == 0 || lo > zd {
			zd = lo
		}
	}
	return zd
}

func (p Pivot[M]) GG() float64 {
	var gg float64
	for i, m := range p.Members {
		_, hi := m.PriceRange()
		if i == 0 || hi > gg {
			gg = hi
		}
	}
	return gg
}

func (p Pivot[M]) DD() float64 {
	var dd float64
	for i, m := range p.Members {
		lo, _ := m.PriceRange()
		if i == 0 || lo < dd {
			dd = lo
		}
	}
	return dd
}

func (p Pivot[M]) ZZ() float64 { return p.ZD() + (p.ZG()-p.ZD())/2 }

func (p Pivot[M]) StartDirection() market.Direction {
	if len(p.Members) == 0 {
		return ""
	}
	return p.Members[0].Trend()
}

func (p Pivot[M]) EndDirection() market.Direction {
	if len(p.Members) == 0 {
		return ""
	}
	return p.Members[len(p.Members)-1].Trend()
}

func (p Pivot[M]) First() M { return p.Members[0] }
func (p Pivot[M]) Last() M  { return p.Members[len(p.Members)-1] }

// Valid 至少三个成员，zg >= zd，且每个成员的区间都与 [zd, zg] 有交集。
func (p Pivot[M]) Valid() bool {
	if len(p.Members) < 3 {
		return false
	}
	zg, zd := p.ZG(), p.ZD()
	if zg < zd {
		return false
	}
	for _, m := range p.Members {
		lo, hi := m.PriceRange()
		if hi < zd || lo > zg {
			return false
		}
	}
	return true
}

// RawBars 所有成员的 K 线，相邻成员共享的端点只保留一次。
func (p Pivot[M]) RawBars() []*market.Bar {
	var out []*market.Bar
	for _, m := range p.Members {
		for _, b := range m.RawBars() {
			if n := len(out); n > 0 && out[n-1] == b {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}

func (p Pivot[M]) String() string {
	return fmt.Sprintf("Pivot(n=%d zg=%.4f zd=%.4f gg=%.4f dd=%.4f)", len(p.Members), p.ZG(), p.ZD(), p.GG(), p.DD())
}

// Chain 顺序划分中枢：向上成员整体在 zd 之下、或向下成员整体在 zg 之上时另起新中枢。
func Chain[M Member](members []M) []Pivot[M] {
	var out []Pivot[M]
	for _, m := range members {
		if len(out) == 0 {
			out = append(out, Pivot[M]{Members: []M{m}})
			continue
		}
		cur := &out[len(out)-1]
		lo, hi := m.PriceRange()
		if (m.Trend() == market.Up && hi < cur.ZD()) || (m.Trend() == market.Down && lo > cur.ZG()) {
			out = append(out, Pivot[M]{Members: []M{m}})
			continue
		}
		cur.Members = append(cur.Members, m)
	}
	return out
}

// SelectRecentLeg 取最近一段可用于背驰比较的走势：
// 最后一个中枢无效且以向下成员结束时与前一个中枢合并，
// 再从最高点所在的向下成员处截取。
func SelectRecentLeg[M Member](pivots []Pivot[M]) (Pivot[M], error) {
	if len(pivots) == 0 {
		return Pivot[M]{}, ErrNoPivot
	}
	last := pivots[len(pivots)-1]
	if !last.Valid() && last.EndDirection() == market.Down && len(pivots) > 1 {
		merged := make([]M, 0, len(pivots[len(pivots)-2].Members)+len(last.Members))
		merged = append(merged, pivots[len(pivots)-2].Members...)
		merged = append(merged, last.Members...)
		last = Pivot[M]{Members: merged}
	}
	gg := last.GG()
	for i, m := range last.Members {
		_, hi := m.PriceRange()
		if m.Trend() == market.Down && hi == gg {
			return Pivot[M]{Members: last.Members[i:]}, nil
		}
	}
	return Pivot[M]{}, fmt.Errorf("%w: no down member at gg=%.4f among %d members", ErrStructuralAmbiguity, gg, len(last.Members))
}

// Since 仅保留 Begin 不早于 t 的成员。
func Since[M Member](members []M, t time.Time) []M {
	for i, m := range members {
		if !m.Begin().Before(t) {
			return members[i:]
		}
	}
	return nil
}
