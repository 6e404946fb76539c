package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"chanlun/internal/analysis/pivot"
	"chanlun/internal/analysis/segment"
	"chanlun/internal/market"
)

// CSVOptions 控制 CSV 数据行的时间格式与精度。
type CSVOptions struct {
	DateOnly       bool
	Location       *time.Location
	PricePrecision int
}

const (
	// PrecisionAuto 根据价格区间自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 保留原始精度
	PrecisionRaw = -1
)

// csvWriter 逐行拼接，统一时间与价格格式。
type csvWriter struct {
	b         strings.Builder
	loc       *time.Location
	dateOnly  bool
	precision int
}

func newCSVWriter(opts CSVOptions, bars []*market.Bar, header string) *csvWriter {
	w := &csvWriter{loc: opts.Location, dateOnly: opts.DateOnly, precision: opts.PricePrecision}
	if w.loc == nil {
		w.loc = time.UTC
	}
	if w.precision == PrecisionAuto {
		w.precision = autoPrecision(bars)
	}
	w.b.WriteString(header)
	w.b.WriteByte('\n')
	return w
}

func (w *csvWriter) row(cells ...string) {
	w.b.WriteString(strings.Join(cells, ","))
	w.b.WriteByte('\n')
}

func (w *csvWriter) time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(w.loc)
	if w.dateOnly {
		return t.Format("06-01-02")
	}
	return t.Format("01-02 15:04")
}

func (w *csvWriter) price(v float64) string { return formatPrice(v, w.precision) }

func (w *csvWriter) String() string { return w.b.String() }

// BuildStrokeCSV 已完成笔：起止时间、方向、高低点与涨跌幅。
func BuildStrokeCSV(strokes []market.Stroke, opts CSVOptions) string {
	if len(strokes) == 0 {
		return ""
	}
	var bars []*market.Bar
	for _, s := range strokes {
		bars = append(bars, s.Bars...)
	}
	w := newCSVWriter(opts, bars, "Start,End,Dir,H,L,Chg%")
	for _, s := range strokes {
		w.row(w.time(s.Start), w.time(s.End), string(s.Direction), w.price(s.High), w.price(s.Low),
			strconv.FormatFloat(s.Change()*100, 'f', 2, 64))
	}
	return w.String()
}

// BuildSegmentCSV 线段：笔区间、方向、高低点与是否成立。
func BuildSegmentCSV(segs []segment.Segment, opts CSVOptions) string {
	if len(segs) == 0 {
		return ""
	}
	var bars []*market.Bar
	for _, s := range segs {
		bars = append(bars, s.RawBars()...)
	}
	w := newCSVWriter(opts, bars, "Start,End,Dir,H,L,Strokes,Valid")
	for _, s := range segs {
		w.row(w.time(s.Begin()), w.time(s.Finish()), string(s.Direction()), w.price(s.High()), w.price(s.Low()),
			fmt.Sprintf("%d-%d", s.Start, s.End), strconv.FormatBool(s.Valid()))
	}
	return w.String()
}

// BuildPivotCSV 中枢：zg/zd/gg/dd、成员数与是否有效。
func BuildPivotCSV[M pivot.Member](pivots []pivot.Pivot[M], opts CSVOptions) string {
	if len(pivots) == 0 {
		return ""
	}
	var bars []*market.Bar
	for _, p := range pivots {
		bars = append(bars, p.RawBars()...)
	}
	w := newCSVWriter(opts, bars, "Start,End,ZG,ZD,GG,DD,Members,Valid")
	for _, p := range pivots {
		end := time.Time{}
		if raw := p.RawBars(); len(raw) > 0 {
			end = raw[len(raw)-1].Time
		}
		w.row(w.time(p.First().Begin()), w.time(end), w.price(p.ZG()), w.price(p.ZD()), w.price(p.GG()), w.price(p.DD()),
			strconv.Itoa(p.Len()), strconv.FormatBool(p.Valid()))
	}
	return w.String()
}

// RenderBlock 输出带 `## title` 与 `[TAG_*]` 包裹的 block，data 为空时返回空串。
func RenderBlock(title, tag, data string) string {
	if data == "" {
		return ""
	}
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if tag == "" {
		tag = "DATA"
	}
	var b strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		b.WriteString("## " + title + "\n")
	}
	b.WriteString("[" + tag + "_START]\n")
	b.WriteString(data)
	if !strings.HasSuffix(data, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("[" + tag + "_END]\n")
	return b.String()
}

// RenderStructure 输出一个 feed 的笔、线段与两个级别的中枢。
func RenderStructure(feed *market.Feed, opts CSVOptions) (string, error) {
	if err := feed.Validate(); err != nil {
		return "", err
	}
	segs, err := segment.Assemble(feed.Symbol, feed.Strokes)
	if err != nil {
		return "", fmt.Errorf("%s 线段划分失败: %w", feed.Key(), err)
	}
	var b strings.Builder
	b.WriteString(RenderBlock(feed.Key()+" strokes", "STROKES", BuildStrokeCSV(feed.Strokes, opts)))
	b.WriteString(RenderBlock(feed.Key()+" segments", "SEGMENTS", BuildSegmentCSV(segs, opts)))
	b.WriteString(RenderBlock(feed.Key()+" stroke pivots", "STROKE_PIVOTS", BuildPivotCSV(pivot.Chain(feed.Strokes), opts)))
	b.WriteString(RenderBlock(feed.Key()+" segment pivots", "SEGMENT_PIVOTS", BuildPivotCSV(pivot.Chain(segs), opts)))
	return b.String(), nil
}

func autoPrecision(bars []*market.Bar) int {
	maxVal := 0.0
	for _, c := range bars {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if abs := math.Abs(v); abs > maxVal {
				maxVal = abs
			}
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
