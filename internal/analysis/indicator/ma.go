package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"chanlun/internal/market"
)

// SMASeries 收盘价简单均线，回看窗口内的值为 0。
func SMASeries(bars []*market.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period 必须大于 0")
	}
	if len(bars) < period {
		return nil, fmt.Errorf("%w: have=%d need=%d", ErrInsufficientBars, len(bars), period)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return talib.Sma(closes, period), nil
}

// MASupport 判断均线最近 lastN 根连续不降，且 price 站在最新均线之上。
func MASupport(bars []*market.Bar, period, lastN int, price float64) (bool, error) {
	if lastN < 2 {
		lastN = 2
	}
	series, err := SMASeries(bars, period)
	if err != nil {
		return false, err
	}
	if len(series) < lastN || len(bars) < period+lastN-1 {
		return false, nil
	}
	tail := series[len(series)-lastN:]
	for _, v := range tail {
		if !isFinite(v) || almostZero(v) {
			return false, nil
		}
	}
	if price < tail[len(tail)-1] {
		return false, nil
	}
	for i := 1; i < len(tail); i++ {
		if tail[i] < tail[i-1] {
			return false, nil
		}
	}
	return true, nil
}
