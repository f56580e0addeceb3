package reservoir

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
)

// Marker and status colours.
const (
	Gray   = "#808080"
	Red    = "#FF0000"
	Yellow = "#FFFF00"
	Green  = "#008000"
	Blue   = "#0000FF"
	Purple = "#800080"
)

type band struct {
	upper  float64
	color  string
	status string
}

// Bands are closed above: a value belongs to the first band whose upper bound it does not exceed.
var bands = []band{ //nolint:gochecknoglobals // status table
	{10, Gray, "Muito Crítica"},
	{30, Red, "Crítica"},
	{50, Yellow, "Alerta"},
	{70, Green, "Confortável"},
	{100, Blue, "Muito Confortável"},
}

// MarkerColor maps a stored-volume percentage to its map colour. Missing
// and negative readings, which StatusOf leaves unclassified, are gray.
func MarkerColor(p *float64) string {
	if p == nil || *p < 0 {
		return Gray
	}
	for _, b := range bands {
		if *p <= b.upper {
			return b.color
		}
	}
	return Purple
}

// Status is the table badge of a percentage.
type Status struct {
	Background string `json:"cor"`
	Label      string `json:"status"`
	Text       string `json:"cor_texto"`
}

// StatusOf classifies a percentage. Missing values are "N/A" and negative
// values are left unclassified.
func StatusOf(p *float64) Status {
	if p == nil {
		return Status{Background: "#FFFFFF", Label: "N/A", Text: "#000000"}
	}
	if *p < 0 {
		return Status{Background: "#FFFFFF", Label: "Não classificado", Text: "#000000"}
	}
	color, label := Purple, "Vertendo"
	for _, b := range bands {
		if *p <= b.upper {
			color, label = b.color, b.status
			break
		}
	}
	text := "#000000"
	switch color {
	case Gray, Red, Blue, Purple:
		text = "#FFFFFF"
	}
	return Status{Background: color, Label: label, Text: text}
}

// Icon renders the triangular marker as a base64 SVG data URI.
func Icon(color string, size int) string {
	svg := fmt.Sprintf(`<svg width="%d" height="%d" viewBox="0 0 100 100" xmlns="http://www.w3.org/2000/svg">`+
		`<polygon points="50,0 100,100 0,100" fill="%s" stroke="#000000" stroke-width="5"/></svg>`, size, size, color)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// Marker is one reservoir on the map.
type Marker struct {
	Reservoir    string  `json:"reservatorio"`
	Municipality string  `json:"municipio"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Date         string  `json:"data"`
	Volume       string  `json:"volume"`
	Percent      string  `json:"percentual"`
	Spillway     string  `json:"cota_sangria"`
	Color        string  `json:"cor"`
	Icon         string  `json:"icone"`
	Tooltip      string  `json:"tooltip"`
}

const iconSize = 15

// Map is the marker layer with its centre.
type Map struct {
	Center  [2]float64 `json:"centro"`
	Zoom    int        `json:"zoom"`
	Markers []Marker   `json:"marcadores"`
}

// BuildMap places one marker per reservoir at its latest reading, centred on
// the mean position of those markers.
func BuildMap(filtered []Reading) Map {
	latest := Latest(filtered)
	m := Map{Zoom: 9, Markers: make([]Marker, 0, len(latest))}
	var sumLat, sumLon float64
	for _, r := range latest {
		sumLat += r.Latitude
		sumLon += r.Longitude
		color := MarkerColor(r.Percent)
		date := ptbr.FormatDate(r.Date)
		if r.Date.IsZero() {
			date = "N/A"
		}
		m.Markers = append(m.Markers, Marker{
			Reservoir:    r.Reservoir,
			Municipality: r.Municipality,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
			Date:         date,
			Volume:       optional(r.Volume, func(v float64) string { return ptbr.FormatDecimal(v, 2) + " hm³" }),
			Percent:      optional(r.Percent, func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" }),
			Spillway:     optional(r.Spillway, func(v float64) string { return ptbr.FormatDecimal(v, 2) }) + " m",
			Color:        color,
			Icon:         Icon(color, iconSize),
			Tooltip:      r.Reservoir + " - " + date,
		})
	}
	if n := float64(len(latest)); n > 0 {
		m.Center = [2]float64{sumLat / n, sumLon / n}
	}
	return m
}

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "N/A"
	}
	return format(*v)
}

// Row is one line of the detail table.
type Row struct {
	Reading
	Status Status   `json:"status"`
	Margin *float64 `json:"sangria"`
}

// Rows decorates filtered readings with status and spillway margin.
func Rows(filtered []Reading) []Row {
	out := make([]Row, 0, len(filtered))
	for _, r := range filtered {
		out = append(out, Row{Reading: r, Status: StatusOf(r.Percent), Margin: r.Margin()})
	}
	return out
}
