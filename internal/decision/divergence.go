package decision

import (
	"fmt"
	"math"

	"chanlun/internal/analysis/pivot"
	"chanlun/internal/market"
)

// legMomentum 单个成员（笔或线段）上的动量统计。
type legMomentum struct {
	MinDif   float64 // dif 最小值
	NegArea  float64 // 绿柱面积（负值之和）
	PeakHist float64 // 柱子绝对值峰值
}

func measure(m pivot.Member, key market.MomentumKey) (legMomentum, error) {
	bars := m.RawBars()
	if len(bars) == 0 {
		return legMomentum{}, fmt.Errorf("%w: member without bars", ErrCacheMissing)
	}
	out := legMomentum{MinDif: math.Inf(1)}
	for _, b := range bars {
		v, ok := b.Momentum(key)
		if !ok {
			return legMomentum{}, fmt.Errorf("%w: %s at %s", ErrCacheMissing, key, b.Time.Format("2006-01-02 15:04"))
		}
		if v.Dif < out.MinDif {
			out.MinDif = v.Dif
		}
		if v.Hist < 0 {
			out.NegArea += v.Hist
		}
		if h := math.Abs(v.Hist); h > out.PeakHist {
			out.PeakHist = h
		}
	}
	return out, nil
}

type divergence struct {
	DifOK  bool // 0 > dif_B > dif_A
	AreaOK bool // |area_A| > |area_B|
}

func compare(a, b legMomentum) divergence {
	return divergence{
		DifOK:  0 > b.MinDif && b.MinDif > a.MinDif,
		AreaOK: math.Abs(a.NegArea) > math.Abs(b.NegArea),
	}
}

func (d divergence) holds(mode DivergenceMode) bool {
	if mode == DivergenceAny {
		return d.DifOK || d.AreaOK
	}
	return d.DifOK && d.AreaOK
}

func (d divergence) String() string {
	return fmt.Sprintf("dif背驰=%v 面积背驰=%v", d.DifOK, d.AreaOK)
}

// latestMomentum 返回最后两根 K 线的动量。
func latestMomentum(bars []*market.Bar, key market.MomentumKey) (last, prev market.MACD, err error) {
	if len(bars) < 2 {
		return last, prev, fmt.Errorf("%w: need 2 bars, have %d", ErrCacheMissing, len(bars))
	}
	var ok1, ok2 bool
	last, ok1 = bars[len(bars)-1].Momentum(key)
	prev, ok2 = bars[len(bars)-2].Momentum(key)
	if !ok1 || !ok2 {
		return last, prev, fmt.Errorf("%w: latest bars", ErrCacheMissing)
	}
	return last, prev, nil
}
