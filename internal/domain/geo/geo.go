// Package geo holds the basin's GeoJSON layers, their bounds and the
// basemap tiles offered by the map pages.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrUnknownLayer is returned for a layer name outside Layers.
var ErrUnknownLayer = errors.New("geo: unknown layer")

// FeatureCollection is the top-level object of every layer file.
type FeatureCollection = geojson.FeatureCollection

// Feature is a GeoJSON feature with free-form properties.
type Feature = geojson.Feature

// Decode parses a FeatureCollection.
func Decode(data []byte) (*FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geo: decode: %w", err)
	}
	return fc, nil
}

// Layer names a basin layer and the file that holds it.
type Layer struct {
	Name  string `json:"nome"`
	File  string `json:"arquivo"`
	Title string `json:"titulo"`
}

// Layers are the files the portal loads from the GeoJSON directory.
var Layers = []Layer{ //nolint:gochecknoglobals // layer catalogue
	{Name: "trechos", File: "trechos_perene.geojson", Title: "Trechos Perenizados"},
	{Name: "acudes", File: "Açudes_Monitorados.geojson", Title: "Açudes Monitorados"},
	{Name: "sedes", File: "Sedes_Municipais.geojson", Title: "Sedes Municipais"},
	{Name: "gestoras", File: "c_gestoras.geojson", Title: "Comissões Gestoras"},
	{Name: "poligno", File: "poligno_municipios.geojson", Title: "Municípios"},
	{Name: "bacia", File: "bacia_banabuiu.geojson", Title: "Bacia do Banabuiú"},
	{Name: "pontos", File: "pontos_controle.geojson", Title: "Pontos de Controle"},
	{Name: "situacao", File: "situacao_bacia.geojson", Title: "Situação da Bacia"},
}

// LayerByName looks up a layer.
func LayerByName(name string) (Layer, error) {
	for _, l := range Layers {
		if l.Name == name {
			return l, nil
		}
	}
	return Layer{}, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
}

// Default map view when no data points are available.
var (
	DefaultCenter = [2]float64{-5.2, -39.5} //nolint:gochecknoglobals // map default
)

// DefaultZoom is the initial zoom of every map.
const DefaultZoom = 9

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the bounding box of every geometry in fc. ok is false
// when the collection has no usable coordinates.
func BoundsOf(fc *FeatureCollection) (b Bounds, ok bool) {
	if fc == nil {
		return Bounds{}, false
	}
	var box orb.Bound
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if fb.IsEmpty() {
			continue
		}
		if !ok {
			box, ok = fb, true
			continue
		}
		box = box.Union(fb)
	}
	if !ok {
		return Bounds{}, false
	}
	return Bounds{MinLat: box.Min.Lat(), MinLon: box.Min.Lon(), MaxLat: box.Max.Lat(), MaxLon: box.Max.Lon()}, true
}

// Seat is a municipal seat marker.
type Seat struct {
	Name      string  `json:"nome"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Seats lists the Point features of the municipal-seat layer.
func Seats(fc *FeatureCollection) []Seat {
	if fc == nil {
		return nil
	}
	out := make([]Seat, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		name := f.Properties.MustString("NOME_MUNIC", "")
		if name == "" {
			name = "Sem nome"
		}
		out = append(out, Seat{Name: name, Latitude: p.Lat(), Longitude: p.Lon()})
	}
	return out
}
