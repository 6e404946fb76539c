package decision

import (
	"time"

	"chanlun/internal/market"
	"chanlun/internal/store"
)

// Unit 一次分类的输入：单个 symbol+freq 的 feed 与分析级别。
type Unit struct {
	Feed  *market.Feed
	Level store.Level
	// AsOf 非零时只使用该时刻及之前的 K 线与笔，晚于它的分型视为不存在
	AsOf time.Time
}

// Outcome 分类结果。Err 为领域拒绝原因（见 errors.go），基础设施故障通过 Classify 的 error 返回。
type Outcome struct {
	Symbol          string              `json:"symbol"`
	Name            string              `json:"name,omitempty"`
	Freq            string              `json:"freq"`
	Level           store.Level         `json:"level"`
	Kind            store.SignalKind    `json:"kind"`
	Power           market.Power        `json:"power,omitempty"`
	EstimatedProfit float64             `json:"estimated_profit"`
	Reason          Reason              `json:"reason"`
	Rule            string              `json:"rule,omitempty"`
	Detail          string              `json:"detail,omitempty"`
	Surfaced        bool                `json:"surfaced"`
	FractalTime     time.Time           `json:"fractal_time"`
	Record          *store.SignalRecord `json:"record,omitempty"`
	Err             error               `json:"-"`
}

// Emitted 本次调用写入并对外展示了信号。
func (o Outcome) Emitted() bool { return o.Reason == ReasonEmitted && o.Surfaced }

func rejected(u Unit, err error, detail string) Outcome {
	o := Outcome{Kind: store.KindOther, Level: u.Level, Reason: ReasonOf(err), Err: err, Detail: detail}
	if u.Feed != nil {
		o.Symbol, o.Name, o.Freq = u.Feed.Symbol, u.Feed.Name, u.Feed.Freq
	}
	return o
}
