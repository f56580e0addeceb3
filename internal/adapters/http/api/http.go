// Package api declares the portal's JSON contracts and route registration.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	contactqueue "github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Dependencies required by HTTP handlers. Each handler declares the slice of
// it that it uses.
type Dependencies interface {
	FlowDependencies
	ReservoirDependencies
	SimulationDependencies
	DocumentDependencies
	LayerDependencies
	RefreshDependencies
	ContactDependencies
}

// Server wires HTTP routes for the portal API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	headerHandler     *HeaderHandler
	flowsHandler      *FlowsHandler
	reservoirsHandler *ReservoirsHandler
	simulationHandler *SimulationsHandler
	documentsHandler  *DocumentsHandler
	layersHandler     *LayersHandler
	refreshHandler    *RefreshHandler
	contactHandler    *ContactHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		headerHandler:     NewHeaderHandler(),
		flowsHandler:      NewFlowsHandler(deps),
		reservoirsHandler: NewReservoirsHandler(deps),
		simulationHandler: NewSimulationsHandler(deps),
		documentsHandler:  NewDocumentsHandler(deps),
		layersHandler:     NewLayersHandler(deps),
		refreshHandler:    NewRefreshHandler(deps),
		contactHandler:    NewContactHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/v1/header", MetricsMiddleware(s.headerHandler.HandleGetHeader, "header"))
	mux.HandleFunc("/api/v1/flows", MetricsMiddleware(s.flowsHandler.HandleGetFlows, "flows"))
	mux.HandleFunc("/api/v1/flows/monthly", MetricsMiddleware(s.flowsHandler.HandleGetMonthly, "flows_monthly"))
	mux.HandleFunc("/api/v1/reservoirs", MetricsMiddleware(s.reservoirsHandler.HandleGetReservoirs, "reservoirs"))
	mux.HandleFunc("/api/v1/reservoirs/export.csv", MetricsMiddleware(s.reservoirsHandler.HandleExportCSV, "reservoirs_csv"))
	mux.HandleFunc("/api/v1/reservoirs/export.xlsx", MetricsMiddleware(s.reservoirsHandler.HandleExportXLSX, "reservoirs_xlsx"))
	mux.HandleFunc("/api/v1/simulations", MetricsMiddleware(s.simulationHandler.HandleGetSimulations, "simulations"))
	mux.HandleFunc("/api/v1/documents", MetricsMiddleware(s.documentsHandler.HandleGetDocuments, "documents"))
	mux.HandleFunc("/api/v1/layers/", MetricsMiddleware(s.layersHandler.HandleGetLayer, "layers"))
	mux.HandleFunc("/api/v1/tiles", MetricsMiddleware(s.layersHandler.HandleGetTiles, "tiles"))
	mux.HandleFunc("/api/v1/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	mux.HandleFunc("/api/v1/contact", MetricsMiddleware(s.contactHandler.HandlePostContact, "contact"))
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// WriteFailure maps err to a status code and writes it as JSON.
func WriteFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// unavailable is implemented by errors of a dependency that is not serving yet.
type unavailable interface {
	Unavailable() bool
}

func classify(err error) (int, string) {
	var u unavailable
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, contact.ErrInvalidForm):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, geo.ErrUnknownLayer):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, contactqueue.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, sheets.ErrEmptyURL), errors.As(err, &u) && u.Unavailable():
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ErrUpstream), errors.Is(err, sheets.ErrFetch), errors.Is(err, sheets.ErrStatus),
		errors.Is(err, table.ErrEmpty), errors.Is(err, table.ErrMissingColumns):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// methodAllowed rejects other methods the way the rest of the API does.
func methodAllowed(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	http.NotFound(w, r)
	return false
}
