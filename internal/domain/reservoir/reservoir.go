// Package reservoir models the monitored-reservoir sheet: map markers,
// status bands, the detail table and its exports.
package reservoir

import (
	"fmt"
	"sort"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Sheet columns.
const (
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
	ColDate         = "Data de Coleta"
	ColPercent      = "Percentual"
	ColVolume       = "Volume"
	ColSpillway     = "Cota Sangria"
	ColLevel        = "Nivel"
	ColReservoir    = "Reservatório"
	ColMunicipality = "Município"
)

// AllMunicipalities disables the municipality filter.
const AllMunicipalities = "Todos"

// Reading is one dated measurement of a reservoir. Optional numbers are nil
// when the cell is empty or unparseable.
type Reading struct {
	Reservoir    string    `json:"reservatorio"`
	Municipality string    `json:"municipio"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Date         time.Time `json:"data_coleta"`
	Percent      *float64  `json:"percentual"`
	Volume       *float64  `json:"volume"`
	Spillway     *float64  `json:"cota_sangria"`
	Level        *float64  `json:"nivel"`
}

// Margin is spillway elevation minus current level, nil if either is missing.
func (r Reading) Margin() *float64 {
	if r.Spillway == nil || r.Level == nil {
		return nil
	}
	m := *r.Spillway - *r.Level
	return &m
}

func number(t *table.Table, row []string, col string) *float64 {
	v, ok := ptbr.ParseNumber(t.Value(row, col))
	if !ok {
		return nil
	}
	return &v
}

// Parse reads the reservoir sheet. Rows without coordinates, and rows
// without a collection date when the column exists, are dropped.
func Parse(t *table.Table) ([]Reading, error) {
	if err := t.Require(ColLatitude, ColLongitude); err != nil {
		return nil, fmt.Errorf("reservoir: %w", err)
	}
	hasDate := t.Has(ColDate)
	out := make([]Reading, 0, t.Len())
	for _, row := range t.Rows {
		lat, okLat := ptbr.ParseNumber(t.Value(row, ColLatitude))
		lon, okLon := ptbr.ParseNumber(t.Value(row, ColLongitude))
		if !okLat || !okLon {
			continue
		}
		r := Reading{
			Reservoir:    t.Value(row, ColReservoir),
			Municipality: t.Value(row, ColMunicipality),
			Latitude:     lat,
			Longitude:    lon,
			Percent:      number(t, row, ColPercent),
			Volume:       number(t, row, ColVolume),
			Spillway:     number(t, row, ColSpillway),
			Level:        number(t, row, ColLevel),
		}
		if hasDate {
			d, ok := ptbr.ParseDate(t.Value(row, ColDate))
			if !ok {
				continue
			}
			r.Date = d
		}
		out = append(out, r)
	}
	return out, nil
}

// Options are the filter choices of the reservoir page.
type Options struct {
	MinDate        time.Time `json:"data_min"`
	MaxDate        time.Time `json:"data_max"`
	Reservoirs     []string  `json:"reservatorios"`
	Municipalities []string  `json:"municipios"`
	MinPercent     float64   `json:"percentual_min"`
	MaxPercent     float64   `json:"percentual_max"`
}

// BuildOptions returns sorted distinct names, "Todos" first among
// municipalities, and the data ranges. Without percent data the range is 0..100.
func BuildOptions(readings []Reading) Options {
	opts := Options{MinPercent: 0, MaxPercent: 100}
	res := map[string]struct{}{}
	mun := map[string]struct{}{}
	first := true
	for _, r := range readings {
		if !r.Date.IsZero() {
			if opts.MinDate.IsZero() || r.Date.Before(opts.MinDate) {
				opts.MinDate = r.Date
			}
			if r.Date.After(opts.MaxDate) {
				opts.MaxDate = r.Date
			}
		}
		if r.Reservoir != "" {
			res[r.Reservoir] = struct{}{}
		}
		if r.Municipality != "" {
			mun[r.Municipality] = struct{}{}
		}
		if r.Percent != nil {
			if first || *r.Percent < opts.MinPercent {
				opts.MinPercent = *r.Percent
			}
			if first || *r.Percent > opts.MaxPercent {
				opts.MaxPercent = *r.Percent
			}
			first = false
		}
	}
	opts.Reservoirs = sortedKeys(res)
	opts.Municipalities = append([]string{AllMunicipalities}, sortedKeys(mun)...)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filter selects readings. Zero values take the page defaults: the latest
// collection date for both ends, every reservoir, every municipality and the
// full percent range of the data.
type Filter struct {
	Start        *time.Time
	End          *time.Time
	Reservoirs   []string
	Municipality string
	MinPercent   *float64
	MaxPercent   *float64
}

// Apply returns the matching readings. Readings without a percent are
// excluded whenever the data carries percent values, since the range
// comparison fails for them.
func (f Filter) Apply(readings []Reading) []Reading {
	opts := BuildOptions(readings)
	start, end := opts.MaxDate, opts.MaxDate
	if f.Start != nil {
		start = ptbr.Day(*f.Start)
	}
	if f.End != nil {
		end = ptbr.Day(*f.End)
	}
	minP, maxP := opts.MinPercent, opts.MaxPercent
	if f.MinPercent != nil {
		minP = *f.MinPercent
	}
	if f.MaxPercent != nil {
		maxP = *f.MaxPercent
	}
	hasPercent := false
	for _, r := range readings {
		if r.Percent != nil {
			hasPercent = true
			break
		}
	}
	var wanted map[string]struct{}
	if len(f.Reservoirs) > 0 {
		wanted = make(map[string]struct{}, len(f.Reservoirs))
		for _, r := range f.Reservoirs {
			wanted[r] = struct{}{}
		}
	}

	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[r.Reservoir]; !ok {
				continue
			}
		}
		if hasPercent || f.MinPercent != nil || f.MaxPercent != nil {
			if r.Percent == nil || *r.Percent < minP || *r.Percent > maxP {
				continue
			}
		}
		if f.Municipality != "" && f.Municipality != AllMunicipalities && r.Municipality != f.Municipality {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Latest keeps the most recent reading of each reservoir, newest first.
func Latest(readings []Reading) []Reading {
	sorted := append([]Reading(nil), readings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	seen := make(map[string]struct{})
	out := make([]Reading, 0, len(sorted))
	for _, r := range sorted {
		if _, ok := seen[r.Reservoir]; ok {
			continue
		}
		seen[r.Reservoir] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PivotRow is the mean volume of each reservoir on one date.
type PivotRow struct {
	Date    time.Time          `json:"data"`
	Volumes map[string]float64 `json:"volumes"`
}

// VolumePivot averages volumes per (date, reservoir), dates ascending.
func VolumePivot(readings []Reading) []PivotRow {
	type acc struct {
		sum float64
		n   int
	}
	byDate := make(map[time.Time]map[string]*acc)
	for _, r := range readings {
		if r.Volume == nil || r.Reservoir == "" {
			continue
		}
		cells, ok := byDate[r.Date]
		if !ok {
			cells = make(map[string]*acc)
			byDate[r.Date] = cells
		}
		a, ok := cells[r.Reservoir]
		if !ok {
			a = &acc{}
			cells[r.Reservoir] = a
		}
		a.sum += *r.Volume
		a.n++
	}
	out := make([]PivotRow, 0, len(byDate))
	for d, cells := range byDate {
		row := PivotRow{Date: d, Volumes: make(map[string]float64, len(cells))}
		for name, a := range cells {
			row.Volumes[name] = a.sum / float64(a.n)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
