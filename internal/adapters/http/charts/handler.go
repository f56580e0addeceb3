package charts

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/pauloqxm/portal-comite/internal/adapters/http/api"
	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

const maxDimension = 4096

// Dependencies are the datasets the charts read.
type Dependencies interface {
	Flows(ctx context.Context) (*flow.Dataset, error)
	Simulations(ctx context.Context) ([]simulation.Row, error)
}

// Handler serves SVG charts with the same filters as the JSON API.
type Handler struct {
	deps Dependencies
}

// NewHandler creates a new chart handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// Register attaches the chart routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/charts/flows/evolution.svg", api.MetricsMiddleware(h.HandleFlowEvolution, "chart_flow_evolution"))
	mux.HandleFunc("/charts/flows/volumes.svg", api.MetricsMiddleware(h.HandleFlowVolumes, "chart_flow_volumes"))
	mux.HandleFunc("/charts/flows/monthly.svg", api.MetricsMiddleware(h.HandleFlowMonthly, "chart_flow_monthly"))
	mux.HandleFunc("/charts/simulations/cotas.svg", api.MetricsMiddleware(h.HandleSimulationLevels, "chart_sim_levels"))
	mux.HandleFunc("/charts/simulations/volumes.svg", api.MetricsMiddleware(h.HandleSimulationVolumes, "chart_sim_volumes"))
}

func size(r *http.Request) (Size, error) {
	var s Size
	for key, dst := range map[string]*int{"largura": &s.Width, "altura": &s.Height} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 100 || v > maxDimension {
			return Size{}, api.NewKind("charts.size", api.ErrBadRequest)
		}
		*dst = v
	}
	return s, nil
}

func (h *Handler) flowRecords(r *http.Request, op string) (*flow.Dataset, []flow.Record, flow.Filter, Size, error) {
	sz, err := size(r)
	if err != nil {
		return nil, nil, flow.Filter{}, sz, err
	}
	f, err := api.ParseFlowFilter(r)
	if err != nil {
		return nil, nil, f, sz, api.WrapKind(op, api.ErrBadRequest, err)
	}
	ds, err := h.deps.Flows(r.Context())
	if err != nil {
		return nil, nil, f, sz, api.Wrap(op, err)
	}
	return ds, f.Apply(ds.Records), f, sz, nil
}

// render buffers the SVG so failures still produce a JSON error.
func render(w http.ResponseWriter, op string, draw func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		if errors.Is(err, ErrNoData) {
			api.WriteFailure(w, api.WrapKind(op, api.ErrNotFound, errors.New(NoDataText)))
			return
		}
		api.WriteFailure(w, api.WrapKind(op, api.ErrInternal, err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleFlowEvolution handles GET /charts/flows/evolution.svg requests.
func (h *Handler) HandleFlowEvolution(w http.ResponseWriter, r *http.Request) {
	const op = "charts.flow_evolution"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ds, records, f, sz, err := h.flowRecords(r, op)
	if err != nil {
		api.WriteFailure(w, err)
		return
	}
	ev := flow.BuildEvolution(records, f.Unit, ds.Allocated)
	render(w, op, func(buf *bytes.Buffer) error { return Evolution(buf, ev, sz) })
}

// HandleFlowVolumes handles GET /charts/flows/volumes.svg requests.
func (h *Handler) HandleFlowVolumes(w http.ResponseWriter, r *http.Request) {
	const op = "charts.flow_volumes"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	_, records, _, sz, err := h.flowRecords(r, op)
	if err != nil {
		api.WriteFailure(w, err)
		return
	}
	volumes := flow.AccumulatedVolumes(records)
	render(w, op, func(buf *bytes.Buffer) error { return Volumes(buf, volumes, sz) })
}

// HandleFlowMonthly handles GET /charts/flows/monthly.svg requests.
func (h *Handler) HandleFlowMonthly(w http.ResponseWriter, r *http.Request) {
	const op = "charts.flow_monthly"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	_, records, f, sz, err := h.flowRecords(r, op)
	if err != nil {
		api.WriteFailure(w, err)
		return
	}
	monthly := flow.MonthlyWeightedAverages(records, f.Unit)
	render(w, op, func(buf *bytes.Buffer) error { return Monthly(buf, monthly, sz) })
}

func (h *Handler) simulationCharts(w http.ResponseWriter, r *http.Request, op string) (simulation.Charts, Size, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return simulation.Charts{}, Size{}, false
	}
	sz, err := size(r)
	if err != nil {
		api.WriteFailure(w, err)
		return simulation.Charts{}, sz, false
	}
	f, err := api.ParseSimulationFilter(r)
	if err != nil {
		api.WriteFailure(w, api.WrapKind(op, api.ErrBadRequest, err))
		return simulation.Charts{}, sz, false
	}
	rows, err := h.deps.Simulations(r.Context())
	if err != nil {
		api.WriteFailure(w, api.Wrap(op, err))
		return simulation.Charts{}, sz, false
	}
	return simulation.BuildCharts(f.Apply(rows)), sz, true
}

// HandleSimulationLevels handles GET /charts/simulations/cotas.svg requests.
func (h *Handler) HandleSimulationLevels(w http.ResponseWriter, r *http.Request) {
	const op = "charts.simulation_levels"
	c, sz, ok := h.simulationCharts(w, r, op)
	if !ok {
		return
	}
	render(w, op, func(buf *bytes.Buffer) error {
		return Simulated(buf, "Cota Simulada x Cota Realizada", "Cota (m)", c.Levels, sz)
	})
}

// HandleSimulationVolumes handles GET /charts/simulations/volumes.svg requests.
func (h *Handler) HandleSimulationVolumes(w http.ResponseWriter, r *http.Request) {
	const op = "charts.simulation_volumes"
	c, sz, ok := h.simulationCharts(w, r, op)
	if !ok {
		return
	}
	render(w, op, func(buf *bytes.Buffer) error {
		return Simulated(buf, "Volume Simulado x Volume Observado", "Volume (hm³)", c.Volumes, sz)
	})
}
