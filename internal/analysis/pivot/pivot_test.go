package pivot

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"chanlun/internal/market"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func zigzag(points ...float64) []market.Stroke {
	out := make([]market.Stroke, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		s := market.Stroke{
			Symbol:    "BTCUSDT",
			Direction: market.Down,
			Start:     t0.Add(time.Duration(i-1) * time.Hour),
			End:       t0.Add(time.Duration(i) * time.Hour),
			High:      max(from, to),
			Low:       min(from, to),
		}
		if to > from {
			s.Direction = market.Up
		}
		out = append(out, s)
	}
	return out
}

func TestChainSinglePivot(t *testing.T) {
	pivots := Chain(zigzag(20, 10, 18, 12, 16, 11))
	if len(pivots) != 1 {
		t.Fatalf("expected 1 pivot, got %d", len(pivots))
	}
	p := pivots[0]
	if p.ZG() != 18 || p.ZD() != 12 || p.GG() != 20 || p.DD() != 10 || p.ZZ() != 15 {
		t.Fatalf("unexpected bounds %s", p)
	}
	if !p.Valid() || p.StartDirection() != market.Down || p.EndDirection() != market.Down {
		t.Fatalf("expected valid down/down pivot, got %s", p)
	}
}

func TestChainStartsNewPivotBelowZD(t *testing.T) {
	pivots := Chain(zigzag(20, 10, 18, 12, 16, 9, 11, 7))
	if len(pivots) != 2 {
		t.Fatalf("expected 2 pivots, got %d", len(pivots))
	}
	if pivots[0].Len() != 5 || pivots[1].Len() != 2 {
		t.Fatalf("unexpected member counts %d/%d", pivots[0].Len(), pivots[1].Len())
	}
}

func TestSelectRecentLegMergesInvalidTail(t *testing.T) {
	strokes := zigzag(20, 10, 18, 12, 16, 9, 11, 7)
	leg, err := SelectRecentLeg(Chain(strokes))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if leg.Len() != 7 || leg.First().Start != strokes[0].Start {
		t.Fatalf("expected merged leg of 7 members from the first stroke, got %d", leg.Len())
	}
	if leg.DD() != 7 {
		t.Fatalf("unexpected leg low %v", leg.DD())
	}
}

func TestSelectRecentLegAmbiguous(t *testing.T) {
	_, err := SelectRecentLeg(Chain(zigzag(15, 10, 14, 11, 20)))
	if !errors.Is(err, ErrStructuralAmbiguity) {
		t.Fatalf("expected ErrStructuralAmbiguity, got %v", err)
	}
	if _, err := SelectRecentLeg[market.Stroke](nil); !errors.Is(err, ErrNoPivot) {
		t.Fatalf("expected ErrNoPivot, got %v", err)
	}
}

func TestValidPivotBounds(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 300; round++ {
		n := 4 + r.Intn(40)
		points := make([]float64, n+1)
		points[0] = 50
		for i := 1; i <= n; i++ {
			step := 0.5 + r.Float64()*8
			if i%2 == 1 {
				points[i] = points[i-1] - step
			} else {
				points[i] = points[i-1] + step
			}
		}
		for _, p := range Chain(zigzag(points...)) {
			if !p.Valid() {
				continue
			}
			zg, zd := p.ZG(), p.ZD()
			if zg < zd {
				t.Fatalf("round %d: valid pivot with zg<zd: %s", round, p)
			}
			for _, m := range p.Members {
				if m.High < zd || m.Low > zg {
					t.Fatalf("round %d: member [%v,%v] outside [%v,%v]", round, m.Low, m.High, zd, zg)
				}
			}
		}
	}
}

func TestSince(t *testing.T) {
	strokes := zigzag(20, 10, 18, 12, 16)
	got := Since(strokes, t0.Add(2*time.Hour))
	if len(got) != 2 || got[0].Start != t0.Add(2*time.Hour) {
		t.Fatalf("unexpected members %d", len(got))
	}
	if Since(strokes, t0.Add(24*time.Hour)) != nil {
		t.Fatalf("expected nil when nothing starts after t")
	}
}
