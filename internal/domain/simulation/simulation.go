// Package simulation models the reservoir simulation sheet: canonical
// criticality classes, filters, KPIs and the level and volume series.
package simulation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Sheet columns.
const (
	ColDate            = "Data"
	ColReservoir       = "Açude"
	ColMunicipality    = "Município"
	ColRegion          = "Região Hidrográfica"
	ColClass           = "Classificação"
	ColCoordinates     = "Coordenadas"
	colCoordinatesTypo = "Coordendas"
	ColSimulatedLevel  = "Cota Simulada (m)"
	ColObservedLevel   = "Cota Realizada (m)"
	ColVolume          = "Volume(m³)"
	ColVolumePercent   = "Volume (%)"
	ColObservedVolume  = "Volume Observado (m³)"
	ColRelease         = "Liberação (m³/s)"
	ColReleaseVolume   = "Liberação (m³)"
)

// Row is one simulated day of a reservoir.
type Row struct {
	Date           time.Time `json:"data"`
	Reservoir      string    `json:"acude"`
	Municipality   string    `json:"municipio"`
	Region         string    `json:"regiao_hidrografica,omitempty"`
	RawClass       string    `json:"classificacao_origem"`
	Class          string    `json:"classificacao"`
	Coordinates    string    `json:"coordenadas,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	SimulatedLevel *float64  `json:"cota_simulada"`
	ObservedLevel  *float64  `json:"cota_realizada"`
	Volume         *float64  `json:"volume_m3"`
	VolumePercent  *float64  `json:"volume_percentual"`
	ObservedVolume *float64  `json:"volume_observado_m3"`
	Release        *float64  `json:"liberacao_m3s"`
	ReleaseVolume  *float64  `json:"liberacao_m3,omitempty"`
}

func number(t *table.Table, row []string, col string) *float64 {
	v, ok := ptbr.ParseNumber(t.Value(row, col))
	if !ok {
		return nil
	}
	return &v
}

// splitCoordinates reads "lat,lon" into two numbers.
func splitCoordinates(s string) (lat, lon *float64) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return nil, nil
	}
	la, okA := ptbr.ParseNumber(a)
	lo, okB := ptbr.ParseNumber(b)
	if !okA || !okB {
		return nil, nil
	}
	return &la, &lo
}

// Parse reads the simulation sheet. Rows without a valid date are dropped.
func Parse(t *table.Table) ([]Row, error) {
	t.Rename(colCoordinatesTypo, ColCoordinates)
	if err := t.Require(ColDate, ColReservoir); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	out := make([]Row, 0, t.Len())
	for _, row := range t.Rows {
		d, ok := ptbr.ParseDate(t.Value(row, ColDate))
		if !ok {
			continue
		}
		r := Row{
			Date:           d,
			Reservoir:      t.Value(row, ColReservoir),
			Municipality:   t.Value(row, ColMunicipality),
			Region:         t.Value(row, ColRegion),
			RawClass:       t.Value(row, ColClass),
			Coordinates:    t.Value(row, ColCoordinates),
			SimulatedLevel: number(t, row, ColSimulatedLevel),
			ObservedLevel:  number(t, row, ColObservedLevel),
			Volume:         number(t, row, ColVolume),
			VolumePercent:  number(t, row, ColVolumePercent),
			ObservedVolume: number(t, row, ColObservedVolume),
			Release:        number(t, row, ColRelease),
			ReleaseVolume:  number(t, row, ColReleaseVolume),
		}
		r.Class = Canonical(r.RawClass)
		if lat, lon := splitCoordinates(r.Coordinates); lat != nil {
			r.Latitude, r.Longitude = lat, lon
		}
		out = append(out, r)
	}
	return out, nil
}

// Options are the page's filter choices.
type Options struct {
	Reservoirs     []string  `json:"acudes"`
	Municipalities []string  `json:"municipios"`
	Classes        []string  `json:"classificacoes"`
	MinDate        time.Time `json:"data_min"`
	MaxDate        time.Time `json:"data_max"`
}

// BuildOptions lists sorted distinct reservoirs and municipalities.
func BuildOptions(rows []Row) Options {
	res, mun := map[string]struct{}{}, map[string]struct{}{}
	opts := Options{Classes: append([]string(nil), Classes...)}
	for _, r := range rows {
		if r.Reservoir != "" {
			res[r.Reservoir] = struct{}{}
		}
		if r.Municipality != "" {
			mun[r.Municipality] = struct{}{}
		}
		if opts.MinDate.IsZero() || r.Date.Before(opts.MinDate) {
			opts.MinDate = r.Date
		}
		if r.Date.After(opts.MaxDate) {
			opts.MaxDate = r.Date
		}
	}
	opts.Reservoirs = keys(res)
	opts.Municipalities = keys(mun)
	return opts
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filter selects rows. Empty lists mean all; Classes defaults to every class.
type Filter struct {
	Reservoirs     []string
	Municipalities []string
	Classes        []string
	Start          *time.Time
	End            *time.Time
}

func lookup(values []string, canon func(string) string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		if canon != nil {
			v = canon(v)
		}
		m[v] = struct{}{}
	}
	return m
}

func allowed(m map[string]struct{}, v string) bool {
	if m == nil {
		return true
	}
	_, ok := m[v]
	return ok
}

// Apply returns matching rows in source order.
func (f Filter) Apply(rows []Row) []Row {
	res := lookup(f.Reservoirs, nil)
	mun := lookup(f.Municipalities, nil)
	cls := lookup(f.Classes, Canonical)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !allowed(res, r.Reservoir) || !allowed(mun, r.Municipality) || !allowed(cls, r.Class) {
			continue
		}
		if f.Start != nil && r.Date.Before(ptbr.Day(*f.Start)) {
			continue
		}
		if f.End != nil && r.Date.After(ptbr.Day(*f.End)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// KPIs are the headline cards of the simulation page.
type KPIs struct {
	// ReleasePerHour is the first release of the earliest day in m³/h, nil
	// when that value is missing.
	ReleasePerHour *float64 `json:"vazao_simulada_m3h"`
	ReleaseLabel   string   `json:"vazao_simulada_formatada"`
	StartDate      string   `json:"data_inicial"`
	EndDate        string   `json:"data_final"`
	Days           int      `json:"dias_periodo"`
}

// BuildKPIs summarizes filtered rows. Empty input yields "N/A" cards.
func BuildKPIs(rows []Row) KPIs {
	k := KPIs{ReleaseLabel: "N/A", StartDate: "N/A", EndDate: "N/A"}
	if len(rows) == 0 {
		return k
	}
	first, last := rows[0].Date, rows[0].Date
	firstIdx := 0
	for i, r := range rows {
		if r.Date.Before(first) {
			first, firstIdx = r.Date, i
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	if rel := rows[firstIdx].Release; rel != nil {
		v := *rel * 3600
		k.ReleasePerHour = &v
		k.ReleaseLabel = ptbr.FormatDecimal(v, 2)
	}
	k.StartDate = ptbr.FormatDate(first)
	k.EndDate = ptbr.FormatDate(last)
	k.Days = ptbr.DaysBetween(first, last)
	return k
}

// Point is one value of a series; nil values are gaps.
type Point struct {
	Date    time.Time `json:"data"`
	Value   *float64  `json:"valor"`
	Percent *float64  `json:"percentual,omitempty"`
}

// Series is one chart line.
type Series struct {
	Name   string  `json:"nome"`
	Points []Point `json:"pontos"`
}

// Charts are the level and volume comparisons, two lines per reservoir.
type Charts struct {
	Levels  []Series `json:"cotas"`
	Volumes []Series `json:"volumes"`
}

func scaled(v *float64, div float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v / div
	return &s
}

// BuildCharts builds simulated-versus-observed series per reservoir in name
// order. Volumes are in hm³.
func BuildCharts(rows []Row) Charts {
	groups := map[string][]Row{}
	for _, r := range rows {
		if r.Reservoir != "" {
			groups[r.Reservoir] = append(groups[r.Reservoir], r)
		}
	}
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	c := Charts{Levels: []Series{}, Volumes: []Series{}}
	for _, n := range names {
		g := groups[n]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Date.Before(g[j].Date) })
		simL := Series{Name: n + " - Cota Simulada (m)"}
		obsL := Series{Name: n + " - Cota Realizada (m)"}
		simV := Series{Name: n + " - Vol. Simulado (hm³)"}
		obsV := Series{Name: n + " - Vol. Observado (hm³)"}
		for _, r := range g {
			simL.Points = append(simL.Points, Point{Date: r.Date, Value: r.SimulatedLevel})
			obsL.Points = append(obsL.Points, Point{Date: r.Date, Value: r.ObservedLevel})
			simV.Points = append(simV.Points, Point{Date: r.Date, Value: scaled(r.Volume, 1e6), Percent: r.VolumePercent})
			obsV.Points = append(obsV.Points, Point{Date: r.Date, Value: scaled(r.ObservedVolume, 1e6)})
		}
		c.Levels = append(c.Levels, simL, obsL)
		c.Volumes = append(c.Volumes, simV, obsV)
	}
	return c
}

// Table sorts rows by reservoir ascending, then date descending.
func Table(rows []Row) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reservoir != out[j].Reservoir {
			return out[i].Reservoir < out[j].Reservoir
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Marker is a reservoir circle on the situation map.
type Marker struct {
	Reservoir      string   `json:"acude"`
	Municipality   string   `json:"municipio"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Class          string   `json:"classificacao"`
	RawClass       string   `json:"classificacao_origem"`
	Color          string   `json:"cor"`
	SimulatedLevel *float64 `json:"cota_simulada"`
	ObservedLevel  *float64 `json:"cota_realizada"`
	Volume         *float64 `json:"volume_m3"`
}

// Markers returns one marker per located row.
func Markers(rows []Row) []Marker {
	out := make([]Marker, 0, len(rows))
	for _, r := range rows {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		out = append(out, Marker{
			Reservoir:      r.Reservoir,
			Municipality:   r.Municipality,
			Latitude:       *r.Latitude,
			Longitude:      *r.Longitude,
			Class:          r.Class,
			RawClass:       r.RawClass,
			Color:          Colors[r.Class],
			SimulatedLevel: r.SimulatedLevel,
			ObservedLevel:  r.ObservedLevel,
			Volume:         r.Volume,
		})
	}
	return out
}

// Center is the mean marker position, or the basin default.
func Center(markers []Marker) [2]float64 {
	if len(markers) == 0 {
		return geo.DefaultCenter
	}
	var lat, lon float64
	for _, m := range markers {
		lat += m.Latitude
		lon += m.Longitude
	}
	n := float64(len(markers))
	return [2]float64{lat / n, lon / n}
}

var classKeys = []string{"Classificação", "classificacao", "CLASSIFICACAO", "classificação", "situacao", "SITUACAO"} //nolint:gochecknoglobals // property lookup order

func featureClass(props map[string]interface{}) string {
	for _, k := range classKeys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return Canonical(s)
		}
		return Canonical(fmt.Sprint(v))
	}
	return ClassNone
}

// FilterFeatures keeps the situation-layer features whose canonical class is
// selected and writes that class back into "Classificação". It returns nil
// when fc is not a FeatureCollection or nothing matches.
func FilterFeatures(fc *geo.FeatureCollection, classes []string) *geo.FeatureCollection {
	if fc == nil || fc.Type != "FeatureCollection" {
		return nil
	}
	sel := lookup(classes, Canonical)
	if sel == nil {
		return nil
	}
	out := geojson.NewFeatureCollection()
	out.BBox = fc.BBox
	out.ExtraMembers = fc.ExtraMembers
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		c := featureClass(f.Properties)
		if _, ok := sel[c]; !ok {
			continue
		}
		kept := *f
		kept.Properties = f.Properties.Clone()
		if kept.Properties == nil {
			kept.Properties = geojson.Properties{}
		}
		kept.Properties[ColClass] = c
		out.Features = append(out.Features, &kept)
	}
	if len(out.Features) == 0 {
		return nil
	}
	return out
}
