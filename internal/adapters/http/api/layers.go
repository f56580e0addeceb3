package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

// LayerDependencies is what the layer handlers read.
type LayerDependencies interface {
	Layer(ctx context.Context, name string) (*geo.FeatureCollection, error)
}

// LayersHandler serves the basin GeoJSON layers and the basemap catalogue.
type LayersHandler struct {
	deps LayerDependencies
}

// NewLayersHandler creates a new layers handler.
func NewLayersHandler(deps LayerDependencies) *LayersHandler {
	return &LayersHandler{deps: deps}
}

type tilesResponse struct {
	Tiles  []geo.Tile  `json:"tiles"`
	Center [2]float64  `json:"centro"`
	Zoom   int         `json:"zoom"`
	Layers []geo.Layer `json:"camadas"`
}

// HandleGetLayer handles GET /api/v1/layers/{name}, plus the
// /api/v1/layers/{name}/bounds and /api/v1/layers/sedes/seats views.
// GET /api/v1/layers/ lists the catalogue.
func (h *LayersHandler) HandleGetLayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_layer"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/layers/"), "/")
	if path == "" {
		writeJSON(w, http.StatusOK, geo.Layers)
		return
	}
	name, view, _ := strings.Cut(path, "/")
	if strings.Contains(view, "/") {
		WriteFailure(w, NewKind(op, ErrNotFound))
		return
	}

	fc, err := h.deps.Layer(r.Context(), name)
	if err != nil {
		WriteFailure(w, Wrap(op, err))
		return
	}
	if fc == nil {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}

	switch view {
	case "":
		if classes := queryList(r, "classificacao"); name == "situacao" && len(classes) > 0 {
			fc = simulation.FilterFeatures(fc, classes)
			if fc == nil {
				fc = geojson.NewFeatureCollection()
			}
		}
		writeJSON(w, http.StatusOK, fc)
	case "bounds":
		b, ok := geo.BoundsOf(fc)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, b)
	case "seats":
		writeJSON(w, http.StatusOK, geo.Seats(fc))
	default:
		WriteFailure(w, NewKind(op, ErrNotFound))
	}
}

// HandleGetTiles handles GET /api/v1/tiles requests.
func (h *LayersHandler) HandleGetTiles(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, tilesResponse{
		Tiles:  geo.Tiles,
		Center: geo.DefaultCenter,
		Zoom:   geo.DefaultZoom,
		Layers: geo.Layers,
	})
}
