package simulation

import (
	"fmt"
	"sort"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// LegacyColumns are required by the older simulation sheet layout.
var LegacyColumns = []string{ //nolint:gochecknoglobals // legacy layout
	"Data", "Açude", "Município", "Região Hidrográfica", "Cota Inicial (m)", "Cota Dia (m)", "Volume (m³)",
	"Volume (%)", "Evapor. Parcial (mm)", "Cota Interm. (m)", "Volume Interm. (m³)",
	"Liberação (m³/s)", "Liberação (m³)", "Volume Final (m³)", "Cota Final (m)", "Coordendas",
}

const colLegacyVolume = "Volume (m³)"

// CheckLegacy reports the legacy columns missing from t.
func CheckLegacy(t *table.Table) error {
	if err := t.Require(LegacyColumns...); err != nil {
		return fmt.Errorf("simulation legacy: %w", err)
	}
	return nil
}

// LegacyVolume is the latest volume of one reservoir in a legacy sheet.
type LegacyVolume struct {
	Reservoir string
	Date      time.Time
	Volume    string
}

// LegacyLatestVolumes returns, per reservoir in name order, the volume of
// its most recent dated row formatted as the older page showed it. Rows
// without a parsable date are skipped; a blank volume reads as zero.
func LegacyLatestVolumes(t *table.Table) []LegacyVolume {
	if CheckLegacy(t) != nil {
		return nil
	}
	latest := map[string]LegacyVolume{}
	for _, row := range t.Rows {
		day, ok := ptbr.ParseDate(t.Value(row, ColDate))
		name := t.Value(row, ColReservoir)
		if !ok || name == "" {
			continue
		}
		if cur, seen := latest[name]; seen && !day.After(cur.Date) {
			continue
		}
		v, _ := ptbr.ParseNumber(t.Value(row, colLegacyVolume))
		latest[name] = LegacyVolume{Reservoir: name, Date: day, Volume: ptbr.FormatVolumeLegacy(v)}
	}
	out := make([]LegacyVolume, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reservoir < out[j].Reservoir })
	return out
}
