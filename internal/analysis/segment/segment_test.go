package segment

import (
	"math/rand"
	"testing"
	"time"

	"chanlun/internal/market"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// zigzag 按端点价格构造首尾相接的笔。
func zigzag(points ...float64) []market.Stroke {
	out := make([]market.Stroke, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		s := market.Stroke{
			Symbol: "BTCUSDT",
			Start:  t0.Add(time.Duration(i-1) * time.Hour),
			End:    t0.Add(time.Duration(i) * time.Hour),
			High:   max(from, to),
			Low:    min(from, to),
		}
		s.Direction = market.Down
		if to > from {
			s.Direction = market.Up
		}
		out = append(out, s)
	}
	return out
}

func TestPushMergesInclusion(t *testing.T) {
	tests := []struct {
		name     string
		dir      market.Direction
		wantHigh float64
		wantLow  float64
	}{
		{name: "up narrows", dir: market.Up, wantHigh: 9, wantLow: 6},
		{name: "down widens", dir: market.Down, wantHigh: 10, wantLow: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := NewFeatureSequence(market.MarkTop)
			seq.Push(FeatureElement{Index: 1, High: 10, Low: 5, Direction: tt.dir})
			seq.Push(FeatureElement{Index: 3, High: 9, Low: 6, Direction: tt.dir})
			if seq.Len() != 1 {
				t.Fatalf("expected single element, got %d", seq.Len())
			}
			got := seq.Elements[0]
			if got.High != tt.wantHigh || got.Low != tt.wantLow {
				t.Fatalf("unexpected bounds %+v", got)
			}
		})
	}
}

func TestPushAppendsWithoutInclusion(t *testing.T) {
	seq := NewFeatureSequence(market.MarkBottom)
	seq.Push(FeatureElement{Index: 0, High: 10, Low: 5, Direction: market.Up})
	seq.Push(FeatureElement{Index: 2, High: 12, Low: 7, Direction: market.Up})
	if seq.Len() != 2 {
		t.Fatalf("expected 2 elements, got %d", seq.Len())
	}
}

func TestIdentify(t *testing.T) {
	top := [3]FeatureElement{
		{Index: 1, High: 25, Low: 18},
		{Index: 3, High: 30, Low: 22},
		{Index: 5, High: 26, Low: 12},
	}
	fx := Identify(top, market.MarkTop)
	if fx == nil {
		t.Fatalf("expected top fractal")
	}
	if fx.Index != 3 || fx.High != 30 || fx.Low != 12 || fx.Gap {
		t.Fatalf("unexpected fractal %+v", fx)
	}
	if Identify(top, market.MarkBottom) != nil {
		t.Fatalf("bottom should not match a top pattern")
	}

	gapped := [3]FeatureElement{
		{Index: 1, High: 20, Low: 15},
		{Index: 3, High: 30, Low: 21},
		{Index: 5, High: 26, Low: 12},
	}
	if fx := Identify(gapped, market.MarkTop); fx == nil || !fx.Gap {
		t.Fatalf("expected gapped top, got %+v", fx)
	}
}

func TestTwoStrokeSegmentNeverValid(t *testing.T) {
	for _, strokes := range [][]market.Stroke{
		zigzag(10, 20, 15),
		zigzag(10, 20, 5),
	} {
		seg := Segment{Strokes: strokes, Start: 0, End: 1}
		if seg.Valid() {
			t.Fatalf("2-stroke segment reported valid")
		}
	}
	three := zigzag(10, 20, 15, 25)
	if !(Segment{Strokes: three, Start: 0, End: 2}).Valid() {
		t.Fatalf("3-stroke overlapping segment should be valid")
	}
	gapped := []market.Stroke{
		{Direction: market.Up, Low: 10, High: 12},
		{Direction: market.Down, Low: 11, High: 12},
		{Direction: market.Up, Low: 13, High: 25},
	}
	if (Segment{Strokes: gapped, Start: 0, End: 2}).Valid() {
		t.Fatalf("gap between 1st and 3rd stroke should invalidate")
	}
}

func TestAssembleUpThenDown(t *testing.T) {
	strokes := zigzag(10, 20, 15, 25, 18, 30, 22, 26, 12, 16, 8, 11, 5)
	segs, err := Assemble("BTCUSDT", strokes)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	first, second := segs[0], segs[1]
	if first.Start != 0 || first.End != 4 || first.Direction() != market.Up || !first.Valid() {
		t.Fatalf("unexpected first segment %+v", first)
	}
	if first.EndFractal == nil || first.EndFractal.Mark != market.MarkTop || first.EndFractal.Index != 5 {
		t.Fatalf("first segment should end on a top fractal at stroke 5, got %+v", first.EndFractal)
	}
	if second.Start != 5 || second.End != 11 || second.Direction() != market.Down || !second.Valid() {
		t.Fatalf("unexpected second segment start=%d end=%d", second.Start, second.End)
	}
	for i, seg := range segs {
		if len(seg.Strokes) < MinStrokes {
			t.Fatalf("segment %d has %d strokes, want at least %d", i, len(seg.Strokes), MinStrokes)
		}
	}
	if first.High() != 30 || second.Low() != 5 {
		t.Fatalf("unexpected extremes high=%v low=%v", first.High(), second.Low())
	}
}

func TestAssembleTooShort(t *testing.T) {
	segs, err := Assemble("BTCUSDT", zigzag(10, 20, 15, 25))
	if err != nil || len(segs) != 0 {
		t.Fatalf("expected no segments, got %d err=%v", len(segs), err)
	}
}

func TestAssembleContiguous(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		n := 3 + r.Intn(60)
		points := make([]float64, n+1)
		points[0] = 100
		for i := 1; i <= n; i++ {
			step := 1 + r.Float64()*10
			if i%2 == 1 {
				points[i] = points[i-1] + step
			} else {
				points[i] = points[i-1] - step
			}
		}
		strokes := zigzag(points...)
		segs, err := Assemble("BTCUSDT", strokes)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		for i, seg := range segs {
			if seg.Start < 0 || seg.End < seg.Start || seg.End >= len(strokes) {
				t.Fatalf("round %d seg %d bad range [%d,%d]", round, i, seg.Start, seg.End)
			}
			if len(seg.Strokes) != seg.End-seg.Start+1 {
				t.Fatalf("round %d seg %d stroke count mismatch", round, i)
			}
			if i == 0 {
				continue
			}
			prev := segs[i-1]
			if seg.Start != prev.End+1 {
				t.Fatalf("round %d: seg %d starts at %d, previous ended at %d", round, i, seg.Start, prev.End)
			}
			if prev.Finish().After(seg.Begin()) {
				t.Fatalf("round %d: seg %d overlaps previous in time", round, i)
			}
		}
	}
}
