package api

import (
	"context"
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/documents"
)

const (
	msgNoDocuments  = "Não há documentos disponíveis no momento."
	msgNoFlowValues = "Não foram encontrados valores numéricos válidos na coluna 'Vazão média'."
)

// DocumentDependencies is what the documents handler reads.
type DocumentDependencies interface {
	Documents(ctx context.Context) ([]documents.Document, error)
}

// DocumentsHandler serves the official documents listing.
type DocumentsHandler struct {
	deps DocumentDependencies
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(deps DocumentDependencies) *DocumentsHandler {
	return &DocumentsHandler{deps: deps}
}

type documentsResponse struct {
	Options    documents.Options         `json:"filtros"`
	Count      string                    `json:"total"`
	Rows       []documents.Row           `json:"documentos"`
	Comparison *documents.FlowComparison `json:"vazoes_por_operacao,omitempty"`
	Message    string                    `json:"message,omitempty"`
}

// HandleGetDocuments handles GET /api/v1/documents requests. Filters are
// operacao, data, reservatorio (repeatable, "Todos" selects all) and busca.
func (h *DocumentsHandler) HandleGetDocuments(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_documents"
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	docs, err := h.deps.Documents(r.Context())
	if err != nil {
		WriteFailure(w, Wrap(op, err))
		return
	}

	f := documents.Filter{
		Operations: queryList(r, "operacao"),
		Dates:      queryList(r, "data"),
		Reservoirs: queryList(r, "reservatorio"),
		Query:      r.URL.Query().Get("busca"),
	}
	filtered := f.Apply(docs)
	resp := documentsResponse{
		Options: documents.BuildOptions(docs),
		Count:   documents.CountLabel(len(filtered)),
		Rows:    documents.Rows(filtered),
	}
	if cmp, ok := documents.FlowByOperation(filtered); ok {
		resp.Comparison = &cmp
	}
	switch {
	case len(docs) == 0:
		resp.Message = msgNoDocuments
	case len(filtered) > 0 && resp.Comparison == nil:
		resp.Message = msgNoFlowValues
	}
	writeJSON(w, http.StatusOK, resp)
}
