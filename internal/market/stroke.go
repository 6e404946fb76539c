package market

import "time"

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Stroke 笔：两个分型之间的一段单向走势，上游产出后不再修改。
type Stroke struct {
	Symbol    string
	Direction Direction
	Start     time.Time
	End       time.Time
	High      float64
	Low       float64
	Bars      []*Bar
}

func (s Stroke) PriceRange() (low, high float64) { return s.Low, s.High }
func (s Stroke) Trend() Direction               { return s.Direction }
func (s Stroke) RawBars() []*Bar                { return s.Bars }
func (s Stroke) Begin() time.Time               { return s.Start }

// Change 笔的涨跌幅，向下笔为负。
func (s Stroke) Change() float64 {
	if s.Direction == Up {
		if s.Low == 0 {
			return 0
		}
		return (s.High - s.Low) / s.Low
	}
	if s.High == 0 {
		return 0
	}
	return (s.Low - s.High) / s.High
}

// PendingStroke 尚未完成的最后一笔。
type PendingStroke struct {
	Direction Direction
	High      float64
	Low       float64
	Fractals  int // 笔内已出现的分型数量
	Bars      []*Bar
}
