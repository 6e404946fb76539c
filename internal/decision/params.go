package decision

import (
	"fmt"
	"strings"

	"chanlun/internal/analysis/indicator"
	"chanlun/internal/store"
)

// DivergenceMode 动量背驰判定：all 要求 dif 与面积同时背驰，any 任一即可。
type DivergenceMode string

const (
	DivergenceAll DivergenceMode = "all"
	DivergenceAny DivergenceMode = "any"
)

// Params 分类器参数，全部显式传入。
type Params struct {
	FreshnessWindow int            `toml:"freshness_window" yaml:"freshness_window" json:"freshness_window"`
	ProfitThreshold float64        `toml:"profit_threshold" yaml:"profit_threshold" json:"profit_threshold"`
	MinMembers      int            `toml:"min_members" yaml:"min_members" json:"min_members"`
	LookbackDays    int            `toml:"lookback_days" yaml:"lookback_days" json:"lookback_days"`
	DivergenceMode  DivergenceMode `toml:"divergence_mode" yaml:"divergence_mode" json:"divergence_mode"`

	// HistDecayRatio 二三买要求最新柱子绝对值低于首笔峰值的该比例
	HistDecayRatio float64 `toml:"hist_decay_ratio" yaml:"hist_decay_ratio" json:"hist_decay_ratio"`
	// TrendChangeRatio 趋势背驰中 B 段幅度至少为 A 段的该比例
	TrendChangeRatio float64 `toml:"trend_change_ratio" yaml:"trend_change_ratio" json:"trend_change_ratio"`

	StrokeElevationMembers  int  `toml:"stroke_elevation_members" yaml:"stroke_elevation_members" json:"stroke_elevation_members"`
	SegmentElevationMembers int  `toml:"segment_elevation_members" yaml:"segment_elevation_members" json:"segment_elevation_members"`
	EnableMASupport         bool `toml:"enable_ma_support" yaml:"enable_ma_support" json:"enable_ma_support"`
	MAPeriod                int  `toml:"ma_period" yaml:"ma_period" json:"ma_period"`

	// Rules 规则执行顺序，为空使用默认顺序
	Rules []string               `toml:"rules" yaml:"rules" json:"rules"`
	MACD  indicator.MACDSettings `toml:"macd" yaml:"macd" json:"macd"`
}

func DefaultParams() Params {
	return Params{
		FreshnessWindow:         5,
		ProfitThreshold:         0.03,
		MinMembers:              4,
		LookbackDays:            180,
		DivergenceMode:          DivergenceAll,
		HistDecayRatio:          1.0 / 3,
		TrendChangeRatio:        0.7,
		StrokeElevationMembers:  9,
		SegmentElevationMembers: 3,
		MAPeriod:                250,
		MACD:                    indicator.NormalizeMACDSettings(indicator.MACDSettings{}),
	}
}

// Normalize 零值字段回落到默认值。
func (p Params) Normalize() Params {
	def := DefaultParams()
	if p.FreshnessWindow <= 0 {
		p.FreshnessWindow = def.FreshnessWindow
	}
	// 0 表示不设收益门槛，负值视为未配置
	if p.ProfitThreshold < 0 {
		p.ProfitThreshold = def.ProfitThreshold
	}
	if p.MinMembers <= 0 {
		p.MinMembers = def.MinMembers
	}
	if p.LookbackDays <= 0 {
		p.LookbackDays = def.LookbackDays
	}
	p.DivergenceMode = DivergenceMode(strings.ToLower(strings.TrimSpace(string(p.DivergenceMode))))
	if p.DivergenceMode == "" {
		p.DivergenceMode = def.DivergenceMode
	}
	if p.HistDecayRatio <= 0 {
		p.HistDecayRatio = def.HistDecayRatio
	}
	if p.TrendChangeRatio <= 0 {
		p.TrendChangeRatio = def.TrendChangeRatio
	}
	if p.StrokeElevationMembers <= 0 {
		p.StrokeElevationMembers = def.StrokeElevationMembers
	}
	if p.SegmentElevationMembers <= 0 {
		p.SegmentElevationMembers = def.SegmentElevationMembers
	}
	if p.MAPeriod <= 0 {
		p.MAPeriod = def.MAPeriod
	}
	p.MACD = indicator.NormalizeMACDSettings(p.MACD)
	return p
}

func (p Params) Validate() error {
	switch p.DivergenceMode {
	case DivergenceAll, DivergenceAny:
	default:
		return fmt.Errorf("divergence_mode 非法: %q", p.DivergenceMode)
	}
	if p.ProfitThreshold < 0 || p.ProfitThreshold > 1 {
		return fmt.Errorf("profit_threshold 需在 [0,1]，当前 %.4f", p.ProfitThreshold)
	}
	if p.MinMembers < 4 {
		return fmt.Errorf("min_members 不能小于 4")
	}
	for _, name := range p.Rules {
		if _, ok := lookupRule(name); !ok {
			return fmt.Errorf("未知规则: %s (可选 %s)", name, strings.Join(RuleNames(), ", "))
		}
	}
	return nil
}

// ElevationMembers 中枢上移规则对前一个中枢的成员数要求。
func (p Params) ElevationMembers(level store.Level) int {
	if level == store.LevelSegment {
		return p.SegmentElevationMembers
	}
	return p.StrokeElevationMembers
}

// RuleOrder 返回实际执行的规则名。
func (p Params) RuleOrder() []string {
	if len(p.Rules) > 0 {
		return p.Rules
	}
	order := make([]string, 0, len(defaultRuleOrder)+1)
	if p.EnableMASupport {
		order = append(order, RuleMASupport)
	}
	return append(order, defaultRuleOrder...)
}
