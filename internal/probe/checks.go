package probe

import (
	"fmt"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/documents"
	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/reservoir"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Dataset names, matching the service's.
const (
	DatasetFlows       = "flows"
	DatasetReservoirs  = "reservoirs"
	DatasetSimulations = "simulations"
	DatasetDocuments   = "documents"
)

// LayoutLegacy marks a simulations sheet still in the older column layout.
const LayoutLegacy = "legacy"

// parsed is what a domain parser yields for the report.
type parsed struct {
	count  int
	dates  []time.Time
	layout string
	notes  []string
}

type check struct {
	required []string
	optional []string
	parse    func(t *table.Table) (parsed, error)
}

var checks = map[string]check{ //nolint:gochecknoglobals // dataset catalogue
	DatasetFlows: {
		required: []string{flow.ColReservoir, flow.ColDate, flow.ColOperation, flow.ColFlow},
		optional: []string{flow.ColAllocated},
		parse: func(t *table.Table) (parsed, error) {
			ds, err := flow.Parse(t)
			if err != nil {
				return parsed{}, err
			}
			p := parsed{count: len(ds.Records)}
			for _, r := range ds.Records {
				p.dates = append(p.dates, r.Date)
			}
			return p, nil
		},
	},
	DatasetReservoirs: {
		required: []string{reservoir.ColLatitude, reservoir.ColLongitude},
		optional: []string{reservoir.ColDate, reservoir.ColReservoir, reservoir.ColMunicipality, reservoir.ColPercent, reservoir.ColVolume, reservoir.ColLevel, reservoir.ColSpillway},
		parse: func(t *table.Table) (parsed, error) {
			readings, err := reservoir.Parse(t)
			if err != nil {
				return parsed{}, err
			}
			p := parsed{count: len(readings)}
			for _, r := range readings {
				p.dates = append(p.dates, r.Date)
			}
			return p, nil
		},
	},
	DatasetSimulations: {
		required: []string{simulation.ColDate, simulation.ColReservoir},
		optional: []string{simulation.ColMunicipality, simulation.ColClass, simulation.ColSimulatedLevel, simulation.ColObservedLevel, simulation.ColVolume, simulation.ColRelease},
		parse: func(t *table.Table) (parsed, error) {
			var p parsed
			// Checked first: parsing renames the misspelt coordinates column.
			if simulation.CheckLegacy(t) == nil {
				p.layout = LayoutLegacy
				for _, v := range simulation.LegacyLatestVolumes(t) {
					p.notes = append(p.notes, fmt.Sprintf("%s em %s: %s", v.Reservoir, ptbr.FormatDate(v.Date), v.Volume))
				}
			}
			rows, err := simulation.Parse(t)
			if err != nil {
				return parsed{}, err
			}
			p.count = len(rows)
			for _, r := range rows {
				p.dates = append(p.dates, r.Date)
			}
			return p, nil
		},
	},
	DatasetDocuments: {
		optional: []string{documents.ColOperation, documents.ColDate, documents.ColReservoir, documents.ColSlides, documents.ColMinutes},
		parse: func(t *table.Table) (parsed, error) {
			docs := documents.Parse(t)
			p := parsed{count: len(docs)}
			for _, d := range docs {
				day, _ := ptbr.ParseDate(d.Date)
				p.dates = append(p.dates, day)
			}
			return p, nil
		},
	},
}

// Known reports whether dataset has a parser.
func Known(dataset string) bool {
	_, ok := checks[dataset]
	return ok
}

// span returns the first and last non-zero dates and how many were zero.
func span(dates []time.Time) (first, last time.Time, undated int) {
	for _, d := range dates {
		if d.IsZero() {
			undated++
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, undated
}
