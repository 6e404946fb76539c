package market

import (
	"fmt"
	"time"
)

// MomentumKey 标识一组动量指标参数；Version 在计算口径变化时递增，避免新旧缓存混用。
type MomentumKey struct {
	Name    string
	Version int
	Fast    int
	Slow    int
	Signal  int
}

func (k MomentumKey) String() string {
	return fmt.Sprintf("%s%d#%d#%d@v%d", k.Name, k.Fast, k.Slow, k.Signal, k.Version)
}

// MACD 单根 K 线上的动量值，Hist 为柱子。
type MACD struct {
	Dif  float64 `json:"dif"`
	Dea  float64 `json:"dea"`
	Hist float64 `json:"hist"`
}

// Bar 原始 K 线。动量缓存只能通过 SetMomentum 写入。
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	momentum map[MomentumKey]MACD
}

func (b *Bar) SetMomentum(k MomentumKey, v MACD) {
	if b.momentum == nil {
		b.momentum = make(map[MomentumKey]MACD, 1)
	}
	b.momentum[k] = v
}

func (b *Bar) Momentum(k MomentumKey) (MACD, bool) {
	if b == nil || b.momentum == nil {
		return MACD{}, false
	}
	v, ok := b.momentum[k]
	return v, ok
}

// HasMomentum 判断 bars 是否全部带有指定 key 的缓存。
func HasMomentum(bars []*Bar, k MomentumKey) bool {
	for _, b := range bars {
		if _, ok := b.Momentum(k); !ok {
			return false
		}
	}
	return true
}
