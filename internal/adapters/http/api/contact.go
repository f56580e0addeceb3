package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
)

const maxContactBody = 64 << 10

// ContactDependencies accepts contact submissions.
type ContactDependencies interface {
	SubmitContact(ctx context.Context, form contact.Form) (contact.Receipt, error)
}

// ContactHandler handles "Fale Conosco" submissions.
type ContactHandler struct {
	deps ContactDependencies
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(deps ContactDependencies) *ContactHandler {
	return &ContactHandler{deps: deps}
}

// HandlePostContact handles POST /api/v1/contact requests. Only JSON bodies
// are accepted, so plain cross-site form posts never reach the pipeline.
func (h *ContactHandler) HandlePostContact(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_contact"
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
			NewKind(op, ErrUnsupportedMediaType))
		return
	}
	var form contact.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContactBody)).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	receipt, err := h.deps.SubmitContact(r.Context(), form)
	if err != nil {
		WriteContactFailure(w, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if receipt.Status == contact.StatusDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, receipt)
}

// WriteContactFailure renders a submission error with the sender-facing text:
// field messages for invalid forms, the generic failure text otherwise.
func WriteContactFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: contact.FailureText}
	var verr *contact.ValidationError
	if errors.As(err, &verr) {
		resp.Message = contact.InvalidText
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}
