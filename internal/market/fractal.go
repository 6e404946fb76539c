package market

import "time"

type Mark string

const (
	MarkTop    Mark = "top"
	MarkBottom Mark = "bottom"
)

// Power 分型强度。
type Power string

const (
	PowerStrong Power = "strong"
	PowerMedium Power = "medium"
	PowerWeak   Power = "weak"
)

// Fractal 由三根 K 线构成的顶/底分型。
type Fractal struct {
	Symbol   string
	Mark     Mark
	Time     time.Time
	High     float64
	Low      float64
	Extreme  float64
	Power    Power
	Gap      bool
	Elements [3]*Bar
}

// NewFractal 以中间 K 线为分型点构造分型，强度由第三根收盘相对前两根的位置决定。
func NewFractal(symbol string, mark Mark, k1, k2, k3 *Bar) Fractal {
	fx := Fractal{
		Symbol:   symbol,
		Mark:     mark,
		Time:     k2.Time,
		Power:    GradePower(mark, k1, k2, k3),
		Gap:      k1.Low > k2.High || k2.Low > k1.High,
		Elements: [3]*Bar{k1, k2, k3},
	}
	if mark == MarkTop {
		fx.High = k2.High
		fx.Low = minFloat(k1.Low, k2.Low, k3.Low)
		fx.Extreme = k2.High
	} else {
		fx.High = maxFloat(k1.High, k2.High, k3.High)
		fx.Low = k2.Low
		fx.Extreme = k2.Low
	}
	return fx
}

func GradePower(mark Mark, k1, k2, k3 *Bar) Power {
	if mark == MarkBottom {
		switch {
		case k3.Close > k1.High:
			return PowerStrong
		case k3.Close > k2.High:
			return PowerMedium
		default:
			return PowerWeak
		}
	}
	switch {
	case k3.Close < k1.Low:
		return PowerStrong
	case k3.Close < k2.Low:
		return PowerMedium
	default:
		return PowerWeak
	}
}

func minFloat(vals ...float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxFloat(vals ...float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
