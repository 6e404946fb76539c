package market

import "github.com/shopspring/decimal"

// StrokePower 笔的力度：价格幅度与成交量幅度。
type StrokePower struct {
	Change decimal.Decimal // 相对起点的涨跌幅
	Range  decimal.Decimal // high - low
	Volume decimal.Decimal // 笔内成交量合计
}

// ComputePower 汇总笔的力度。成交量逐根累加，避免浮点累计误差影响比较。
func ComputePower(s Stroke) StrokePower {
	return PowerOf(s.Direction, s.Low, s.High, s.Bars)
}

// PowerOf 按方向与高低点计算任意走势（笔或线段）的力度。
func PowerOf(dir Direction, lowPrice, highPrice float64, bars []*Bar) StrokePower {
	vol := decimal.Zero
	for _, b := range bars {
		if b == nil {
			continue
		}
		vol = vol.Add(decimal.NewFromFloat(b.Volume))
	}
	high := decimal.NewFromFloat(highPrice)
	low := decimal.NewFromFloat(lowPrice)
	change := decimal.Zero
	switch {
	case dir == Up && !low.IsZero():
		change = high.Sub(low).Div(low)
	case dir == Down && !high.IsZero():
		change = low.Sub(high).Div(high)
	}
	return StrokePower{
		Change: change,
		Range:  high.Sub(low),
		Volume: vol,
	}
}

// StrongerThan 判断 p 的幅度是否不低于 other 的 ratio 倍。
func (p StrokePower) StrongerThan(other StrokePower, ratio float64) bool {
	return p.Change.Abs().GreaterThanOrEqual(other.Change.Abs().Mul(decimal.NewFromFloat(ratio)))
}
