package api

import (
	"context"
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

const (
	msgEmptySimulations = "A planilha de simulações está vazia. Por favor, verifique os dados."
	msgNoSimulations    = "Não há dados para os filtros selecionados."
	msgNoSituation      = "Nenhuma área da camada 'Situação da Bacia' corresponde à Classificação selecionada."
	msgNoBasinBounds    = "Não foi possível centralizar pela bacia."
)

// SimulationDependencies is what the simulation handler reads.
type SimulationDependencies interface {
	Simulations(ctx context.Context) ([]simulation.Row, error)
	Layer(ctx context.Context, name string) (*geo.FeatureCollection, error)
}

// SimulationsHandler serves the simulation page.
type SimulationsHandler struct {
	deps SimulationDependencies
}

// NewSimulationsHandler creates a new simulations handler.
func NewSimulationsHandler(deps SimulationDependencies) *SimulationsHandler {
	return &SimulationsHandler{deps: deps}
}

type simulationMap struct {
	Center    [2]float64             `json:"centro"`
	Zoom      int                    `json:"zoom"`
	Bounds    *geo.Bounds            `json:"limites,omitempty"`
	Markers   []simulation.Marker    `json:"marcadores"`
	Situation *geo.FeatureCollection `json:"situacao,omitempty"`
	Legend    map[string]string      `json:"legenda"`
	Messages  []string               `json:"mensagens,omitempty"`
}

type simulationsResponse struct {
	Options simulation.Options `json:"filtros"`
	KPIs    simulation.KPIs    `json:"kpis"`
	Map     simulationMap      `json:"mapa"`
	Charts  simulation.Charts  `json:"graficos"`
	Table   []simulation.Row   `json:"tabela"`
	Message string             `json:"message,omitempty"`
}

// ParseSimulationFilter reads acude, municipio, classificacao, inicio and fim.
func ParseSimulationFilter(r *http.Request) (simulation.Filter, error) {
	start, end, err := queryRange(r)
	if err != nil {
		return simulation.Filter{}, err
	}
	return simulation.Filter{
		Reservoirs:     queryList(r, "acude"),
		Municipalities: queryList(r, "municipio"),
		Classes:        queryList(r, "classificacao"),
		Start:          start,
		End:            end,
	}, nil
}

// HandleGetSimulations handles GET /api/v1/simulations requests.
func (h *SimulationsHandler) HandleGetSimulations(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_simulations"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	f, err := ParseSimulationFilter(r)
	if err != nil {
		WriteFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.Simulations(r.Context())
	if err != nil {
		WriteFailure(w, Wrap(op, err))
		return
	}

	filtered := f.Apply(rows)
	resp := simulationsResponse{
		Options: simulation.BuildOptions(rows),
		KPIs:    simulation.BuildKPIs(filtered),
		Charts:  simulation.BuildCharts(filtered),
		Table:   simulation.Table(filtered),
		Map:     h.buildMap(r.Context(), filtered, f.Classes),
	}
	switch {
	case len(rows) == 0:
		resp.Message = msgEmptySimulations
	case len(filtered) == 0:
		resp.Message = msgNoSimulations
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildMap centres on the basin outline when it is available and overlays
// the situation areas of the selected classes.
func (h *SimulationsHandler) buildMap(ctx context.Context, rows []simulation.Row, classes []string) simulationMap {
	markers := simulation.Markers(rows)
	m := simulationMap{
		Center:  simulation.Center(markers),
		Zoom:    geo.DefaultZoom,
		Markers: markers,
		Legend:  simulation.Colors,
	}

	basin, err := h.deps.Layer(ctx, "bacia")
	if err != nil {
		m.Messages = append(m.Messages, msgNoBasinBounds)
	} else if b, ok := geo.BoundsOf(basin); ok {
		m.Bounds = &b
	}

	if len(classes) == 0 {
		classes = simulation.Classes
	}
	situation, err := h.deps.Layer(ctx, "situacao")
	if err == nil && situation != nil {
		m.Situation = simulation.FilterFeatures(situation, classes)
		if m.Situation == nil {
			m.Messages = append(m.Messages, msgNoSituation)
		}
	}
	return m
}
