package segment

import "chanlun/internal/market"

// FeatureFractal 特征序列分型。Index 为中间元素对应笔的下标。
type FeatureFractal struct {
	Mark     market.Mark
	High     float64
	Low      float64
	Extreme  float64
	Index    int
	Gap      bool
	Elements [3]FeatureElement
}

// Identify 在末尾三个元素上识别 mark 类型的分型，不符合时返回 nil。
func Identify(els [3]FeatureElement, mark market.Mark) *FeatureFractal {
	a, b, c := els[0], els[1], els[2]
	switch mark {
	case market.MarkTop:
		if !(b.High > a.High && b.High > c.High && b.Low > a.Low && b.Low > c.Low) {
			return nil
		}
		return &FeatureFractal{
			Mark:     mark,
			High:     b.High,
			Low:      min(a.Low, b.Low, c.Low),
			Extreme:  b.High,
			Index:    b.Index,
			Gap:      gapBetween(a, b),
			Elements: els,
		}
	case market.MarkBottom:
		if !(b.Low < a.Low && b.Low < c.Low && b.High < a.High && b.High < c.High) {
			return nil
		}
		return &FeatureFractal{
			Mark:     mark,
			High:     max(a.High, b.High, c.High),
			Low:      b.Low,
			Extreme:  b.Low,
			Index:    b.Index,
			Gap:      gapBetween(a, b),
			Elements: els,
		}
	}
	return nil
}

func gapBetween(a, b FeatureElement) bool {
	return a.Low > b.High || b.Low > a.High
}

func strokesGap(a, b market.Stroke) bool {
	return a.Low > b.High || b.Low > a.High
}
