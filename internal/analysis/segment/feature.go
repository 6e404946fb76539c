package segment

import "chanlun/internal/market"

// FeatureElement 特征序列元素，是某一笔的投影；Index 为该笔在输入中的下标。
type FeatureElement struct {
	Index     int
	High      float64
	Low       float64
	Direction market.Direction
}

func elementOf(strokes []market.Stroke, idx int) FeatureElement {
	s := strokes[idx]
	return FeatureElement{Index: idx, High: s.High, Low: s.Low, Direction: s.Direction}
}

func (e FeatureElement) contains(o FeatureElement) bool {
	return e.Low <= o.Low && e.High >= o.High
}

func included(a, b FeatureElement) bool {
	return a.contains(b) || b.contains(a)
}

// merge 合并存在包含关系的两个元素。
// 向上元素取高低点中较窄的一侧，向下元素取较宽的一侧。
func merge(a, b FeatureElement) FeatureElement {
	out := FeatureElement{Direction: a.Direction}
	if a.Direction == market.Up {
		out.High = min(a.High, b.High)
		out.Low = max(a.Low, b.Low)
		out.Index = a.Index
		if b.Low > a.Low {
			out.Index = b.Index
		}
		return out
	}
	out.High = max(a.High, b.High)
	out.Low = min(a.Low, b.Low)
	out.Index = a.Index
	if b.High > a.High {
		out.Index = b.Index
	}
	return out
}

// FeatureSequence 单侧特征序列。Mark 为该序列能识别的分型类型：
// 向下笔组成的序列找顶分型（结束向上线段），向上笔组成的序列找底分型。
type FeatureSequence struct {
	Mark     market.Mark
	Elements []FeatureElement

	pending *FeatureFractal
}

func NewFeatureSequence(mark market.Mark) *FeatureSequence {
	return &FeatureSequence{Mark: mark}
}

// Push 追加一个元素；与末尾元素存在包含关系时原地合并，序列长度不变。
func (s *FeatureSequence) Push(e FeatureElement) {
	n := len(s.Elements)
	if n > 0 && included(s.Elements[n-1], e) {
		s.Elements[n-1] = merge(s.Elements[n-1], e)
		return
	}
	s.Elements = append(s.Elements, e)
}

func (s *FeatureSequence) Len() int { return len(s.Elements) }

// Last3 返回末尾三个元素，不足三个时 ok=false。
func (s *FeatureSequence) Last3() (out [3]FeatureElement, ok bool) {
	n := len(s.Elements)
	if n < 3 {
		return out, false
	}
	copy(out[:], s.Elements[n-3:])
	return out, true
}

func (s *FeatureSequence) reset() {
	s.Elements = s.Elements[:0]
	s.pending = nil
}
