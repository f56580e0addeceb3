// Package flow computes the operated-flow views: filters, KPIs, evolution
// series, accumulated volumes and day-weighted monthly averages.
package flow

import (
	"fmt"
	"sort"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Sheet columns.
const (
	ColReservoir = "Reservatório Monitorado"
	ColDate      = "Data"
	ColOperation = "Operação"
	ColFlow      = "Vazão Operada"
	ColAllocated = "Vazao_Aloc"
)

// Unit is the display unit of a flow value. Source values are L/s.
type Unit string

// Supported units.
const (
	LitersPerSecond      Unit = "L/s"
	CubicMetersPerSecond Unit = "m³/s"
)

// ParseUnit maps user input to a Unit, defaulting to L/s.
func ParseUnit(s string) Unit {
	switch s {
	case string(CubicMetersPerSecond), "m3/s", "m3s":
		return CubicMetersPerSecond
	default:
		return LitersPerSecond
	}
}

// Convert turns a L/s value into u.
func (u Unit) Convert(litersPerSecond float64) float64 {
	if u == CubicMetersPerSecond {
		return litersPerSecond / 1000
	}
	return litersPerSecond
}

// Record is one row of the flow sheet.
type Record struct {
	Reservoir    string    `json:"reservatorio"`
	Date         time.Time `json:"data"`
	Operation    string    `json:"operacao"`
	Flow         float64   `json:"vazao_operada"`
	HasFlow      bool      `json:"-"`
	Allocated    float64   `json:"vazao_alocada,omitempty"`
	HasAllocated bool      `json:"-"`
	Month        string    `json:"mes"`
}

// Dated reports whether the row carried a parseable date.
func (r Record) Dated() bool { return !r.Date.IsZero() }

// Dataset is the parsed flow sheet.
type Dataset struct {
	Records []Record
	// Allocated is set when the sheet carries the allocated-flow column.
	Allocated bool
}

// Parse reads the flow sheet. Rows with unparseable dates keep a zero date
// and missing flows count as zero in sums.
func Parse(t *table.Table) (*Dataset, error) {
	if err := t.Require(ColReservoir, ColDate, ColOperation, ColFlow); err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	ds := &Dataset{Allocated: t.Has(ColAllocated)}
	ds.Records = make([]Record, 0, t.Len())
	for _, row := range t.Rows {
		rec := Record{
			Reservoir: t.Value(row, ColReservoir),
			Operation: t.Value(row, ColOperation),
		}
		if d, ok := ptbr.ParseDate(t.Value(row, ColDate)); ok {
			rec.Date = d
			rec.Month = d.Format("2006-01")
		}
		rec.Flow, rec.HasFlow = ptbr.ParseNumber(t.Value(row, ColFlow))
		if ds.Allocated {
			rec.Allocated, rec.HasAllocated = ptbr.ParseNumber(t.Value(row, ColAllocated))
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// Options are the distinct values offered by the page filters.
type Options struct {
	Reservoirs []string  `json:"reservatorios"`
	Operations []string  `json:"operacoes"`
	Months     []string  `json:"meses"`
	MinDate    time.Time `json:"data_min"`
	MaxDate    time.Time `json:"data_max"`
	Units      []Unit    `json:"unidades"`
}

// BuildOptions lists distinct values in first-appearance order.
func BuildOptions(records []Record) Options {
	opts := Options{Units: []Unit{LitersPerSecond, CubicMetersPerSecond}}
	opts.Reservoirs = distinct(records, func(r Record) string { return r.Reservoir })
	opts.Operations = distinct(records, func(r Record) string { return r.Operation })
	opts.Months = distinct(records, func(r Record) string { return r.Month })
	opts.MinDate, opts.MaxDate = DateRange(records)
	return opts
}

func distinct(records []Record, key func(Record) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// DateRange returns the earliest and latest dates, zero when none are dated.
func DateRange(records []Record) (minDate, maxDate time.Time) {
	for _, r := range records {
		if !r.Dated() {
			continue
		}
		if minDate.IsZero() || r.Date.Before(minDate) {
			minDate = r.Date
		}
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	return minDate, maxDate
}

// Filter selects records. Empty lists mean no restriction; the date
// interval is inclusive and excludes undated rows.
type Filter struct {
	Reservoirs []string
	Operations []string
	Months     []string
	Start      *time.Time
	End        *time.Time
	Unit       Unit
}

// Apply returns the matching records in source order.
func (f Filter) Apply(records []Record) []Record {
	res, ops, months := set(f.Reservoirs), set(f.Operations), set(f.Months)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !member(res, r.Reservoir) || !member(ops, r.Operation) || !member(months, r.Month) {
			continue
		}
		if f.Start != nil || f.End != nil {
			if !r.Dated() {
				continue
			}
			if f.Start != nil && r.Date.Before(ptbr.Day(*f.Start)) {
				continue
			}
			if f.End != nil && r.Date.After(ptbr.Day(*f.End)) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func set(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func member(s map[string]struct{}, v string) bool {
	if s == nil {
		return true
	}
	_, ok := s[v]
	return ok
}

// KPIs are the headline cards of the flow page.
type KPIs struct {
	Reservoirs int    `json:"reservatorios"`
	Records    int    `json:"registros"`
	LastDate   string `json:"ultima_data"`
	Unit       Unit   `json:"unidade"`
}

// BuildKPIs summarizes filtered records.
func BuildKPIs(records []Record, unit Unit) KPIs {
	_, last := DateRange(records)
	return KPIs{
		Reservoirs: len(distinct(records, func(r Record) string { return r.Reservoir })),
		Records:    len(records),
		LastDate:   ptbr.FormatDate(last),
		Unit:       ParseUnit(string(unit)),
	}
}

// Table returns records sorted by date descending, undated rows last.
func Table(records []Record) []Record {
	out := append([]Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Dated() != b.Dated() {
			return a.Dated()
		}
		return a.Date.After(b.Date)
	})
	return out
}
