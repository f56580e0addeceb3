package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/reservoir"
)

const (
	msgNoReservoirs      = "Não há reservatórios com os filtros aplicados."
	msgNoReservoirVolume = "Não há dados de volume para o(s) reservatório(s) selecionado(s) no período."
)

// ReservoirDependencies is what the reservoir handlers read.
type ReservoirDependencies interface {
	Reservoirs(ctx context.Context) ([]reservoir.Reading, error)
}

// ReservoirsHandler serves the monitored-reservoir page and its exports.
type ReservoirsHandler struct {
	deps ReservoirDependencies
}

// NewReservoirsHandler creates a new reservoirs handler.
func NewReservoirsHandler(deps ReservoirDependencies) *ReservoirsHandler {
	return &ReservoirsHandler{deps: deps}
}

type reservoirsResponse struct {
	Options reservoir.Options    `json:"filtros"`
	Map     reservoir.Map        `json:"mapa"`
	Table   []reservoir.Row      `json:"tabela"`
	Volumes []reservoir.PivotRow `json:"volumes"`
	Message string               `json:"message,omitempty"`
}

// ParseReservoirFilter reads inicio, fim, reservatorio, municipio,
// percentual_min and percentual_max.
func ParseReservoirFilter(r *http.Request) (reservoir.Filter, error) {
	start, end, err := queryRange(r)
	if err != nil {
		return reservoir.Filter{}, err
	}
	minP, err := queryFloat(r, "percentual_min")
	if err != nil {
		return reservoir.Filter{}, err
	}
	maxP, err := queryFloat(r, "percentual_max")
	if err != nil {
		return reservoir.Filter{}, err
	}
	if minP != nil && maxP != nil && *minP > *maxP {
		return reservoir.Filter{}, fmt.Errorf("%w: percentual_min above percentual_max", ErrBadRequest)
	}
	return reservoir.Filter{
		Start:        start,
		End:          end,
		Reservoirs:   queryList(r, "reservatorio"),
		Municipality: r.URL.Query().Get("municipio"),
		MinPercent:   minP,
		MaxPercent:   maxP,
	}, nil
}

func (h *ReservoirsHandler) load(r *http.Request, op string) ([]reservoir.Reading, []reservoir.Reading, error) {
	f, err := ParseReservoirFilter(r)
	if err != nil {
		return nil, nil, WrapKind(op, ErrBadRequest, err)
	}
	all, err := h.deps.Reservoirs(r.Context())
	if err != nil {
		return nil, nil, Wrap(op, err)
	}
	return all, f.Apply(all), nil
}

// HandleGetReservoirs handles GET /api/v1/reservoirs requests.
func (h *ReservoirsHandler) HandleGetReservoirs(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_reservoirs"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	all, filtered, err := h.load(r, op)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	resp := reservoirsResponse{
		Options: reservoir.BuildOptions(all),
		Map:     reservoir.BuildMap(filtered),
		Table:   reservoir.Rows(filtered),
		Volumes: reservoir.VolumePivot(filtered),
	}
	switch {
	case len(filtered) == 0:
		resp.Message = msgNoReservoirs
	case len(resp.Volumes) == 0:
		resp.Message = msgNoReservoirVolume
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExportCSV handles GET /api/v1/reservoirs/export.csv requests.
func (h *ReservoirsHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "api.export_reservoirs_csv", "csv", "text/csv; charset=utf-8", reservoir.WriteCSV)
}

// HandleExportXLSX handles GET /api/v1/reservoirs/export.xlsx requests.
func (h *ReservoirsHandler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "api.export_reservoirs_xlsx", "xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", reservoir.WriteXLSX)
}

func (h *ReservoirsHandler) export(w http.ResponseWriter, r *http.Request, op, ext, contentType string,
	write func(w io.Writer, readings []reservoir.Reading) error,
) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	_, filtered, err := h.load(r, op)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	// Rendered into memory first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := write(&buf, filtered); err != nil {
		WriteFailure(w, WrapKind(op, ErrInternal, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reservoir.ExportFilename(ptbr.Today(), ext)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
