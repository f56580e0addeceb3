// Package charts renders the portal's flow and simulation charts as SVG.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("charts: no data to plot")

// NoDataText is shown in place of an empty chart.
const NoDataText = "Sem dados suficientes para montar o gráfico."

const (
	defaultWidth  = 960
	defaultHeight = 480
)

// Size is the canvas in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) orDefault() Size {
	if s.Width <= 0 {
		s.Width = defaultWidth
	}
	if s.Height <= 0 {
		s.Height = defaultHeight
	}
	return s
}

func color(s string) drawing.Color {
	switch {
	case strings.HasPrefix(s, "#"):
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	case s == "blue":
		return chart.ColorBlue
	default:
		return chart.ColorAlternateGray
	}
}

func dateFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return chart.TimeFromFloat64(f).UTC().Format("02/01/06")
	}
	return ""
}

func decimalFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return ptbr.FormatDecimal(f, 2)
	}
	return ""
}

// extent tracks the data window so both axes always get a non-empty range.
type extent struct {
	minT, maxT time.Time
	minY, maxY float64
	n          int
}

func (e *extent) add(t time.Time, y float64) {
	if e.n == 0 || t.Before(e.minT) {
		e.minT = t
	}
	if e.n == 0 || t.After(e.maxT) {
		e.maxT = t
	}
	if e.n == 0 || y < e.minY {
		e.minY = y
	}
	if e.n == 0 || y > e.maxY {
		e.maxY = y
	}
	e.n++
}

func (e *extent) axes() (x, y *chart.ContinuousRange) {
	minT, maxT := e.minT, e.maxT
	if !maxT.After(minT) {
		minT, maxT = minT.AddDate(0, 0, -1), maxT.AddDate(0, 0, 1)
	}
	pad := (e.maxY - e.minY) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(e.maxY)*0.1, 1)
	}
	return &chart.ContinuousRange{Min: chart.TimeToFloat64(minT), Max: chart.TimeToFloat64(maxT)},
		&chart.ContinuousRange{Min: e.minY - pad, Max: e.maxY + pad}
}

func lineChart(title, yName string, series []chart.Series, ext *extent, size Size) chart.Chart {
	size = size.orDefault()
	xr, yr := ext.axes()
	c := chart.Chart{
		Title:      title,
		Width:      size.Width,
		Height:     size.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Data", ValueFormatter: dateFormatter, Range: xr},
		YAxis:      chart.YAxis{Name: yName, ValueFormatter: decimalFormatter, Range: yr},
		Series:     series,
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c
}

// Evolution draws one line per reservoir, plus the weighted mean and the
// allocated flow when present.
func Evolution(w io.Writer, ev flow.Evolution, size Size) error {
	var (
		series []chart.Series
		ext    extent
	)
	for _, s := range ev.Series {
		ts := chart.TimeSeries{
			Name:  s.Name,
			Style: chart.Style{StrokeColor: color(s.Color), StrokeWidth: 2, DotColor: color(s.Color), DotWidth: 3},
		}
		for _, p := range s.Points {
			ts.XValues = append(ts.XValues, p.Date)
			ts.YValues = append(ts.YValues, p.Value)
			ext.add(p.Date, p.Value)
		}
		if len(ts.XValues) > 0 {
			series = append(series, ts)
		}
	}
	if ext.n == 0 {
		return ErrNoData
	}
	if ev.Allocated != nil && len(ev.Allocated.Points) > 0 {
		ts := chart.TimeSeries{
			Name:  ev.Allocated.Name,
			Style: chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2, StrokeDashArray: []float64{6, 4}},
		}
		for _, p := range ev.Allocated.Points {
			ts.XValues = append(ts.XValues, p.Date)
			ts.YValues = append(ts.YValues, p.Value)
			ext.add(p.Date, p.Value)
		}
		series = append(series, ts)
	}
	if ev.WeightedMean != nil {
		m := *ev.WeightedMean
		ext.add(ext.minT, m)
		series = append(series, chart.TimeSeries{
			Name:    fmt.Sprintf("Média ponderada: %s %s", ptbr.FormatDecimal(m, 2), ev.Unit),
			Style:   chart.Style{StrokeColor: drawing.ColorFromHex("FF0000"), StrokeWidth: 2, StrokeDashArray: []float64{2, 4}},
			XValues: []time.Time{ext.minT, ext.maxT},
			YValues: []float64{m, m},
		})
	}
	c := lineChart("Evolução da Vazão Operada", "Vazão ("+string(ev.Unit)+")", series, &ext, size)
	if err := c.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("charts: evolution: %w", err)
	}
	return nil
}

// Volumes draws the accumulated volume of each reservoir in millions of m³.
func Volumes(w io.Writer, volumes []flow.Volume, size Size) error {
	if len(volumes) == 0 {
		return ErrNoData
	}
	size = size.orDefault()
	bars := make([]chart.Value, 0, len(volumes))
	top := 0.0
	for i, v := range volumes {
		c := color(flow.Palette[i%len(flow.Palette)])
		bars = append(bars, chart.Value{
			Label: v.Reservoir + " (" + v.Label + ")",
			Value: v.AxisValue,
			Style: chart.Style{FillColor: c, StrokeColor: c},
		})
		top = math.Max(top, v.AxisValue)
	}
	if top <= 0 {
		top = 1
	}
	bc := chart.BarChart{
		Title:      "Volume Acumulado por Reservatório",
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   60,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Name:           "Milhões de m³",
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: decimalFormatter,
		},
		Bars: bars,
	}
	if err := bc.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("charts: volumes: %w", err)
	}
	return nil
}

// Monthly stacks the day-weighted monthly averages of every reservoir.
func Monthly(w io.Writer, m flow.Monthly, size Size) error {
	if len(m.Bars) == 0 {
		return ErrNoData
	}
	size = size.orDefault()
	values := map[string]map[string]float64{}
	total := 0.0
	for _, b := range m.Bars {
		if values[b.Month] == nil {
			values[b.Month] = map[string]float64{}
		}
		values[b.Month][b.Reservoir] = b.Value
		total += b.Value
	}
	if total <= 0 {
		return ErrNoData
	}
	bars := make([]chart.StackedBar, 0, len(m.Months))
	for _, month := range m.Months {
		sb := chart.StackedBar{Name: month}
		for i, res := range m.Reservoirs {
			v, ok := values[month][res]
			if !ok || v <= 0 {
				continue
			}
			c := color(flow.Palette[i%len(flow.Palette)])
			sb.Values = append(sb.Values, chart.Value{Label: res, Value: v, Style: chart.Style{FillColor: c, StrokeColor: c}})
		}
		if len(sb.Values) > 0 {
			bars = append(bars, sb)
		}
	}
	sc := chart.StackedBarChart{
		Title:      "Média Mensal Ponderada (" + string(m.Unit) + ")",
		Width:      size.Width,
		Height:     size.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Bars:       bars,
	}
	if err := sc.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("charts: monthly: %w", err)
	}
	return nil
}

// Simulated draws paired simulated and observed series; observed lines are
// dashed. Missing values are skipped.
func Simulated(w io.Writer, title, yName string, series []simulation.Series, size Size) error {
	var (
		out []chart.Series
		ext extent
	)
	for i, s := range series {
		c := color(flow.Palette[(i/2)%len(flow.Palette)])
		style := chart.Style{StrokeColor: c, StrokeWidth: 2, DotColor: c, DotWidth: 3}
		if i%2 == 1 {
			style.StrokeDashArray = []float64{6, 4}
		}
		ts := chart.TimeSeries{Name: s.Name, Style: style}
		for _, p := range s.Points {
			if p.Value == nil {
				continue
			}
			ts.XValues = append(ts.XValues, p.Date)
			ts.YValues = append(ts.YValues, *p.Value)
			ext.add(p.Date, *p.Value)
		}
		if len(ts.XValues) > 0 {
			out = append(out, ts)
		}
	}
	if ext.n == 0 {
		return ErrNoData
	}
	c := lineChart(title, yName, out, &ext, size)
	if err := c.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("charts: %s: %w", title, err)
	}
	return nil
}
