package flow

import (
	"sort"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"gonum.org/v1/gonum/floats"
)

// Palette colours evolution series in reservoir order.
var Palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#17becf", "#e377c2"} //nolint:gochecknoglobals // chart palette

// Point is one reading of a series.
type Point struct {
	Date  time.Time `json:"data"`
	Value float64   `json:"valor"`
}

// Series is one line of a chart.
type Series struct {
	Name   string  `json:"nome"`
	Color  string  `json:"cor"`
	Points []Point `json:"pontos"`
}

// Evolution is the flow-over-time chart.
type Evolution struct {
	Unit   Unit     `json:"unidade"`
	Series []Series `json:"series"`
	// WeightedMean and Allocated are set only when a single reservoir with
	// more than one reading is shown.
	WeightedMean *float64 `json:"media_ponderada,omitempty"`
	Allocated    *Series  `json:"vazao_alocada,omitempty"`
}

// weights returns the active days of each dated reading: the gap to the
// previous reading (0 for the first) and, for the last one, the days until
// periodEnd inclusive. The caller sorts points by date.
func weights(dates []time.Time, periodEnd time.Time, clampLast bool) []float64 {
	w := make([]float64, len(dates))
	for i := 1; i < len(dates); i++ {
		w[i] = float64(ptbr.DaysBetween(dates[i-1], dates[i]))
	}
	if n := len(dates); n > 0 {
		last := float64(ptbr.DaysBetween(dates[n-1], periodEnd) + 1)
		if clampLast && last < 0 {
			last = 0
		}
		w[n-1] = last
	}
	return w
}

// PeriodWeightedMean is Σ(v·d)/Σd over date-sorted points where d are the
// active days of each reading closing at periodEnd. Σd = 0 yields 0.
func PeriodWeightedMean(points []Point, periodEnd time.Time) float64 {
	if len(points) == 0 {
		return 0
	}
	dates := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		dates[i], values[i] = p.Date, p.Value
	}
	return weightedMean(values, weights(dates, periodEnd, false))
}

func weightedMean(values, days []float64) float64 {
	total := floats.Sum(days)
	if total == 0 {
		return 0
	}
	return floats.Dot(values, days) / total
}

// dailyLast groups dated records of one reservoir by day, keeping the last
// reading of each day, sorted by date.
func dailyLast(records []Record) []Record {
	byDay := make(map[time.Time]int)
	var out []Record
	for _, r := range records {
		if !r.Dated() {
			continue
		}
		if i, ok := byDay[r.Date]; ok {
			out[i] = r
			continue
		}
		byDay[r.Date] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func byReservoir(records []Record) (order []string, groups map[string][]Record) {
	groups = make(map[string][]Record)
	for _, r := range records {
		if r.Reservoir == "" {
			continue
		}
		if _, ok := groups[r.Reservoir]; !ok {
			order = append(order, r.Reservoir)
		}
		groups[r.Reservoir] = append(groups[r.Reservoir], r)
	}
	return order, groups
}

// BuildEvolution builds one series per reservoir in first-appearance order.
func BuildEvolution(records []Record, unit Unit, withAllocated bool) Evolution {
	unit = ParseUnit(string(unit))
	ev := Evolution{Unit: unit, Series: []Series{}}
	order, groups := byReservoir(records)
	_, periodEnd := DateRange(records)

	for i, name := range order {
		daily := dailyLast(groups[name])
		s := Series{Name: name, Color: Palette[i%len(Palette)], Points: make([]Point, 0, len(daily))}
		raw := make([]Point, 0, len(daily))
		for _, r := range daily {
			s.Points = append(s.Points, Point{Date: r.Date, Value: unit.Convert(r.Flow)})
			raw = append(raw, Point{Date: r.Date, Value: r.Flow})
		}
		ev.Series = append(ev.Series, s)

		if len(order) != 1 || len(daily) <= 1 {
			continue
		}
		mean := unit.Convert(PeriodWeightedMean(raw, periodEnd))
		ev.WeightedMean = &mean
		if withAllocated {
			alloc := Series{Name: "Vazão Alocada", Color: "blue"}
			for _, r := range daily {
				if r.HasAllocated {
					alloc.Points = append(alloc.Points, Point{Date: r.Date, Value: unit.Convert(r.Allocated)})
				}
			}
			ev.Allocated = &alloc
		}
	}
	return ev
}

// Volume is the accumulated released volume of one reservoir.
type Volume struct {
	Reservoir string  `json:"reservatorio"`
	VolumeM3  float64 `json:"volume_m3"`
	Label     string  `json:"volume_formatado"`
	// AxisValue is the volume in millions of m³.
	AxisValue float64 `json:"volume_eixo"`
}

const secondsPerDay = 86400

// AccumulatedVolumes integrates each reservoir's flow (L/s) over the active
// days of its readings, the last interval closing at the latest date of the
// whole selection. Results are sorted by volume, largest first.
func AccumulatedVolumes(records []Record) []Volume {
	order, groups := byReservoir(records)
	_, globalEnd := DateRange(records)
	out := make([]Volume, 0, len(order))
	for _, name := range order {
		var dated []Record
		for _, r := range groups[name] {
			if r.Dated() {
				dated = append(dated, r)
			}
		}
		if len(dated) == 0 {
			continue
		}
		sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(dated[j].Date) })

		dates := make([]time.Time, len(dated))
		m3PerDay := make([]float64, len(dated))
		for i, r := range dated {
			dates[i] = r.Date
			m3PerDay[i] = r.Flow / 1000 * secondsPerDay
		}
		total := floats.Dot(m3PerDay, weights(dates, globalEnd, true))
		out = append(out, Volume{
			Reservoir: name,
			VolumeM3:  total,
			Label:     ptbr.FormatVolumeM3(total),
			AxisValue: total / 1e6,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VolumeM3 > out[j].VolumeM3 })
	return out
}

// MonthlyBar is one stacked segment of the monthly average chart.
type MonthlyBar struct {
	Reservoir string  `json:"reservatorio"`
	Month     string  `json:"mes_ref"`
	Value     float64 `json:"valor"`
	Label     string  `json:"valor_formatado"`
}

// Monthly is the stacked monthly average chart.
type Monthly struct {
	Unit       Unit         `json:"unidade"`
	Months     []string     `json:"meses"`
	Reservoirs []string     `json:"reservatorios"`
	Bars       []MonthlyBar `json:"barras"`
}

// MonthlyWeightedAverages computes the day-weighted mean flow per reservoir
// and month. One reading per day is kept (the last). Inside a month the last
// reading stays active until the dataset's latest date when the month is the
// dataset's latest month, else until the month's last day, inclusive.
func MonthlyWeightedAverages(records []Record, unit Unit) Monthly {
	unit = ParseUnit(string(unit))
	out := Monthly{Unit: unit, Months: []string{}, Reservoirs: []string{}, Bars: []MonthlyBar{}}
	_, datasetMax := DateRange(records)
	if datasetMax.IsZero() {
		return out
	}

	type key struct{ reservoir, month string }
	order, groups := byReservoir(records)
	totals := make(map[string]float64)
	monthOrd := make(map[string]int)

	for _, name := range order {
		daily := dailyLast(groups[name])
		var keys []key
		buckets := make(map[key][]Record)
		for _, r := range daily {
			k := key{name, ptbr.MonthRef(r.Date)}
			if _, ok := buckets[k]; !ok {
				keys = append(keys, k)
			}
			buckets[k] = append(buckets[k], r)
		}
		for _, k := range keys {
			group := buckets[k]
			last := group[len(group)-1].Date
			end := ptbr.EndOfMonth(last)
			if last.Year() == datasetMax.Year() && last.Month() == datasetMax.Month() {
				end = datasetMax
			}
			dates := make([]time.Time, len(group))
			values := make([]float64, len(group))
			for i, r := range group {
				dates[i], values[i] = r.Date, r.Flow
			}
			v := unit.Convert(weightedMean(values, weights(dates, end, false)))
			out.Bars = append(out.Bars, MonthlyBar{
				Reservoir: name,
				Month:     k.month,
				Value:     v,
				Label:     ptbr.FormatFlowLabel(v, string(unit)),
			})
			totals[name] += v
			if _, ok := monthOrd[k.month]; !ok {
				monthOrd[k.month], _ = ptbr.ParseMonthRef(k.month)
			}
		}
	}

	for m := range monthOrd {
		out.Months = append(out.Months, m)
	}
	sort.Slice(out.Months, func(i, j int) bool { return monthOrd[out.Months[i]] < monthOrd[out.Months[j]] })
	sort.SliceStable(out.Bars, func(i, j int) bool { return monthOrd[out.Bars[i].Month] < monthOrd[out.Bars[j].Month] })

	for _, name := range order {
		if _, ok := totals[name]; ok {
			out.Reservoirs = append(out.Reservoirs, name)
		}
	}
	sort.SliceStable(out.Reservoirs, func(i, j int) bool { return totals[out.Reservoirs[i]] < totals[out.Reservoirs[j]] })
	return out
}
