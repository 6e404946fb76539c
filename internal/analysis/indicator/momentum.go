package indicator

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"

	"chanlun/internal/market"
)

// ErrInsufficientBars K 线数量不足以覆盖指标的回看窗口。
var ErrInsufficientBars = errors.New("insufficient bars for momentum")

type MACDSettings struct {
	Fast   int `json:"fast,omitempty" toml:"fast" yaml:"fast"`
	Slow   int `json:"slow,omitempty" toml:"slow" yaml:"slow"`
	Signal int `json:"signal,omitempty" toml:"signal" yaml:"signal"`
}

// macdVersion 柱子口径变化时递增。
const macdVersion = 1

func NormalizeMACDSettings(in MACDSettings) MACDSettings {
	out := in
	if out.Fast <= 0 {
		out.Fast = 12
	}
	if out.Slow <= 0 {
		out.Slow = 26
	}
	if out.Signal <= 0 {
		out.Signal = 9
	}
	if out.Slow < out.Fast {
		out.Fast, out.Slow = out.Slow, out.Fast
	}
	return out
}

func KeyFor(s MACDSettings) market.MomentumKey {
	s = NormalizeMACDSettings(s)
	return market.MomentumKey{Name: "macd", Version: macdVersion, Fast: s.Fast, Slow: s.Slow, Signal: s.Signal}
}

// MACDCache 负责把 MACD 写入 Feed 的每根 K 线。
type MACDCache struct {
	key market.MomentumKey
}

func NewMACDCache(s MACDSettings) *MACDCache {
	return &MACDCache{key: KeyFor(s)}
}

func (c *MACDCache) Key() market.MomentumKey { return c.key }

// EnsureMomentum 保证 feed 中所有可达 K 线（含笔与未完成笔）都带有 dif/dea/hist。
// 已经完整缓存时直接返回。
func (c *MACDCache) EnsureMomentum(feed *market.Feed) (market.MomentumKey, error) {
	if feed == nil {
		return c.key, errors.New("feed 不能为空")
	}
	if !reachableComplete(feed, c.key) {
		if err := c.compute(feed.Bars); err != nil {
			return c.key, fmt.Errorf("%s: %w", feed.Key(), err)
		}
		if !reachableComplete(feed, c.key) {
			return c.key, fmt.Errorf("%s: 存在不属于 feed.Bars 的 K 线，无法补齐动量缓存", feed.Key())
		}
	}
	return c.key, nil
}

func (c *MACDCache) compute(bars []*market.Bar) error {
	need := c.key.Slow + c.key.Signal
	if len(bars) < need {
		return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientBars, len(bars), need)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	dif, dea, hist := talib.Macd(closes, c.key.Fast, c.key.Slow, c.key.Signal)
	for i, b := range bars {
		// 柱子按国内行情软件口径取 2 倍
		b.SetMomentum(c.key, market.MACD{
			Dif:  finiteOrZero(dif[i]),
			Dea:  finiteOrZero(dea[i]),
			Hist: finiteOrZero(hist[i]) * 2,
		})
	}
	return nil
}

func reachableComplete(feed *market.Feed, key market.MomentumKey) bool {
	if !market.HasMomentum(feed.Bars, key) {
		return false
	}
	for _, s := range feed.Strokes {
		if !market.HasMomentum(s.Bars, key) {
			return false
		}
	}
	if feed.Pending != nil && !market.HasMomentum(feed.Pending.Bars, key) {
		return false
	}
	return true
}
