package segment

import (
	"errors"
	"fmt"

	"chanlun/internal/market"
)

// ErrStructuralAmbiguity 结构上必须存在的极值笔找不到。
var ErrStructuralAmbiguity = errors.New("structural ambiguity")

// forceEndDistance 同类分型距线段起点达到该笔数时强制插入一段。
const forceEndDistance = 6

type draft struct {
	start, end     int
	startFx, endFx *FeatureFractal
}

type assembler struct {
	symbol  string
	strokes []market.Stroke
	segs    []*draft
	up      *FeatureSequence
	down    *FeatureSequence
}

// Assemble 将笔序列划分为线段。返回的线段首尾相接：后一段从前一段结束笔的下一笔开始。
func Assemble(symbol string, strokes []market.Stroke) ([]Segment, error) {
	a := &assembler{
		symbol:  symbol,
		strokes: strokes,
		up:      NewFeatureSequence(market.MarkTop),
		down:    NewFeatureSequence(market.MarkBottom),
	}
	if err := a.run(); err != nil {
		return nil, err
	}
	return a.materialize(), nil
}

func (a *assembler) run() error {
	n := len(a.strokes)
	i := 0
	for i < n {
		if len(a.segs) == 0 {
			if !a.canOpen(i) {
				i++
				continue
			}
			a.segs = append(a.segs, &draft{start: i, end: -1})
		}

		var err error
		if a.strokes[i].Direction == market.Down {
			err = a.feed(a.up, a.down, i)
		} else {
			err = a.feed(a.down, a.up, i)
		}
		if err != nil {
			return err
		}

		last := a.segs[len(a.segs)-1]
		if a.valid(last) {
			i = last.end + 1
			if i >= n {
				break
			}
			a.segs = append(a.segs, &draft{start: i, end: -1, startFx: last.endFx})
			a.up.reset()
			a.down.reset()
			continue
		}
		i++
	}
	return a.closeTrailing()
}

// canOpen 第一段：后一根同向笔突破极值，且第 2、4 笔之间没有缺口。
func (a *assembler) canOpen(i int) bool {
	if i+3 >= len(a.strokes) {
		return false
	}
	s0, s2 := a.strokes[i], a.strokes[i+2]
	extends := s2.High > s0.High
	if s0.Direction == market.Down {
		extends = s2.Low < s0.Low
	}
	return extends && !strokesGap(a.strokes[i+1], a.strokes[i+3])
}

func (a *assembler) feed(cur, other *FeatureSequence, idx int) error {
	cur.Push(elementOf(a.strokes, idx))
	els, ok := cur.Last3()
	if !ok {
		return nil
	}
	fx := Identify(els, cur.Mark)
	if fx == nil {
		return nil
	}
	last := a.segs[len(a.segs)-1]
	if fx.Index <= last.start {
		return nil
	}

	if pend := other.pending; pend != nil {
		if pend.Index > last.start && fx.Index > pend.Index {
			// 反向序列已有待确认分型，一次确认两段
			last.end = pend.Index - 1
			last.endFx = pend
			a.segs = append(a.segs, &draft{start: pend.Index, end: fx.Index - 1, startFx: pend, endFx: fx})
			cur.pending, other.pending = nil, nil
			return nil
		}
		other.pending = nil
	}

	if cur.pending != nil {
		cur.pending = fx
		return nil
	}

	if len(a.segs) == 1 || last.startFx == nil || fx.Mark != last.startFx.Mark {
		if fx.Gap {
			cur.pending = fx
			return nil
		}
		last.end = fx.Index - 1
		last.endFx = fx
		cur.pending, other.pending = nil, nil
		return nil
	}

	// 与起始分型同类：有缺口不处理
	if fx.Gap {
		return nil
	}
	if fx.Index-last.start >= forceEndDistance {
		ext, err := a.findExtreme(last.start, fx.Index, a.strokes[last.start].Direction)
		if err != nil {
			return err
		}
		last.end = ext
		a.segs = append(a.segs, &draft{start: ext + 1, end: fx.Index - 1, endFx: fx})
	} else {
		a.segs = a.segs[:len(a.segs)-1]
		prev := a.segs[len(a.segs)-1]
		prev.end = fx.Index - 1
		prev.endFx = fx
	}
	cur.pending, other.pending = nil, nil
	return nil
}

// findExtreme 在 [start+2, end-3) 内找与线段同向的最极端一笔。
func (a *assembler) findExtreme(start, end int, dir market.Direction) (int, error) {
	lo, hi := start+2, end-3
	if hi > len(a.strokes) {
		hi = len(a.strokes)
	}
	best := -1
	for i := lo; i < hi; i++ {
		s := a.strokes[i]
		if s.Direction != dir {
			continue
		}
		if best < 0 ||
			(dir == market.Up && s.High > a.strokes[best].High) ||
			(dir == market.Down && s.Low < a.strokes[best].Low) {
			best = i
		}
	}
	if best < 0 {
		return -1, fmt.Errorf("%w: symbol=%s direction=%s range=[%d,%d)", ErrStructuralAmbiguity, a.symbol, dir, lo, hi)
	}
	return best, nil
}

// closeTrailing 最后一段未完结时，以起点之后的同向极值笔结束；不足三笔直接丢弃。
func (a *assembler) closeTrailing() error {
	if len(a.segs) == 0 {
		return nil
	}
	last := a.segs[len(a.segs)-1]
	if a.valid(last) {
		return nil
	}
	n := len(a.strokes)
	if n-last.start < MinStrokes {
		a.segs = a.segs[:len(a.segs)-1]
		return nil
	}
	dir := a.strokes[last.start].Direction
	best := -1
	for i := last.start + 2; i < n; i++ {
		s := a.strokes[i]
		if s.Direction != dir {
			continue
		}
		if best < 0 ||
			(dir == market.Up && s.High > a.strokes[best].High) ||
			(dir == market.Down && s.Low < a.strokes[best].Low) {
			best = i
		}
	}
	if best < 0 {
		return fmt.Errorf("%w: symbol=%s trailing range=[%d,%d)", ErrStructuralAmbiguity, a.symbol, last.start+2, n)
	}
	last.end = best
	last.endFx = nil
	return nil
}

func (a *assembler) valid(d *draft) bool {
	if d.end < d.start || d.end-d.start+1 < MinStrokes {
		return false
	}
	return !strokesGap(a.strokes[d.start], a.strokes[d.start+2])
}

func (a *assembler) materialize() []Segment {
	out := make([]Segment, 0, len(a.segs))
	for _, d := range a.segs {
		seg := Segment{Symbol: a.symbol, Start: d.start, End: d.end, StartFractal: d.startFx, EndFractal: d.endFx}
		if d.end >= d.start {
			seg.Strokes = a.strokes[d.start : d.end+1]
		}
		out = append(out, seg)
	}
	return out
}
