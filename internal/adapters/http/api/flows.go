package api

import (
	"context"
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/flow"
)

// Info texts shown instead of empty charts.
const (
	msgNoFlowData   = "Nenhum dado encontrado com os filtros aplicados."
	msgNoEvolution  = "Dados insuficientes para exibir o gráfico de evolução."
	msgNoMonthly    = "Sem dados para calcular a média."
	msgNoVolumeData = "Sem dados suficientes para o gráfico de volume."
)

// FlowDependencies is what the flow handlers read.
type FlowDependencies interface {
	Flows(ctx context.Context) (*flow.Dataset, error)
}

// FlowsHandler serves the operated-flow page.
type FlowsHandler struct {
	deps FlowDependencies
}

// NewFlowsHandler creates a new flows handler.
func NewFlowsHandler(deps FlowDependencies) *FlowsHandler {
	return &FlowsHandler{deps: deps}
}

type flowsResponse struct {
	Options   flow.Options   `json:"filtros"`
	KPIs      flow.KPIs      `json:"kpis"`
	Evolution flow.Evolution `json:"evolucao"`
	Volumes   []flow.Volume  `json:"volumes"`
	Table     []flow.Record  `json:"tabela"`
	Message   string         `json:"message,omitempty"`
}

type monthlyResponse struct {
	flow.Monthly
	Message string `json:"message,omitempty"`
}

// ParseFlowFilter reads reservatorio, operacao, mes, inicio, fim and unidade.
func ParseFlowFilter(r *http.Request) (flow.Filter, error) {
	start, end, err := queryRange(r)
	if err != nil {
		return flow.Filter{}, err
	}
	return flow.Filter{
		Reservoirs: queryList(r, "reservatorio"),
		Operations: queryList(r, "operacao"),
		Months:     queryList(r, "mes"),
		Start:      start,
		End:        end,
		Unit:       flow.ParseUnit(r.URL.Query().Get("unidade")),
	}, nil
}

func (h *FlowsHandler) filtered(r *http.Request, op string) (*flow.Dataset, []flow.Record, flow.Filter, error) {
	f, err := ParseFlowFilter(r)
	if err != nil {
		return nil, nil, f, WrapKind(op, ErrBadRequest, err)
	}
	ds, err := h.deps.Flows(r.Context())
	if err != nil {
		return nil, nil, f, Wrap(op, err)
	}
	return ds, f.Apply(ds.Records), f, nil
}

// HandleGetFlows handles GET /api/v1/flows requests.
func (h *FlowsHandler) HandleGetFlows(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_flows"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	ds, records, f, err := h.filtered(r, op)
	if err != nil {
		WriteFailure(w, err)
		return
	}

	resp := flowsResponse{
		Options:   flow.BuildOptions(ds.Records),
		KPIs:      flow.BuildKPIs(records, f.Unit),
		Evolution: flow.BuildEvolution(records, f.Unit, ds.Allocated),
		Volumes:   flow.AccumulatedVolumes(records),
		Table:     flow.Table(records),
	}
	switch {
	case len(records) == 0:
		resp.Message = msgNoFlowData
	case len(resp.Evolution.Series) == 0:
		resp.Message = msgNoEvolution
	case len(resp.Volumes) == 0:
		resp.Message = msgNoVolumeData
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetMonthly handles GET /api/v1/flows/monthly requests.
func (h *FlowsHandler) HandleGetMonthly(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_flows_monthly"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	_, records, f, err := h.filtered(r, op)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	resp := monthlyResponse{Monthly: flow.MonthlyWeightedAverages(records, f.Unit)}
	if len(resp.Bars) == 0 {
		resp.Message = msgNoMonthly
	}
	writeJSON(w, http.StatusOK, resp)
}
