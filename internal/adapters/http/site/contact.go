package site

import (
	"errors"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

const (
	maxFormBytes = 64 << 10

	// ExpiredText replaces the form when the CSRF check fails.
	ExpiredText = "O formulário expirou. Recarregue a página e envie novamente."
)

func contactView(r *http.Request, f contact.Form) view {
	return view{
		Title:          "Fale Conosco",
		Page:           "fale-conosco",
		CSRF:           csrf.TemplateField(r),
		Form:           f.Normalize(),
		Kinds:          contact.Kinds,
		Channels:       contact.Channels,
		MaxDescription: contact.MaxDescription,
		PrivacyURL:     contact.PrivacyPolicyURL,
	}
}

// formFrom maps posted fields onto a contact form; checkboxes post "on".
func formFrom(r *http.Request) contact.Form {
	v := r.PostForm.Get
	return contact.Form{
		Name:        v("nome"),
		Email:       v("email"),
		Phone:       v("telefone"),
		Document:    v("cpf_cnpj"),
		CityState:   v("cidade_estado"),
		Kind:        v("tipo_contato"),
		OtherKind:   v("outro_contato"),
		Subject:     v("assunto"),
		Description: v("descricao"),
		Channel:     v("canal_resposta"),
		Consent:     v("lgpd_consentimento") != "",
		Newsletter:  v("receber_informativos") != "",
	}
}

// HandleContact handles GET and POST /fale-conosco requests. A successful
// submission renders a cleared form with the confirmation text.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, r, http.StatusOK, "contact.html", contactView(r, contact.Form{}))
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		v := contactView(r, contact.Form{})
		v.Alert = contact.InvalidText
		h.render(w, r, http.StatusBadRequest, "contact.html", v)
		return
	}
	form := formFrom(r)

	receipt, err := h.deps.SubmitContact(r.Context(), form)
	if err != nil {
		v := contactView(r, form)
		var verr *contact.ValidationError
		switch {
		case errors.As(err, &verr):
			v.Alert = contact.InvalidText
			v.Errors = verr.Fields
			h.render(w, r, http.StatusBadRequest, "contact.html", v)
		case errors.Is(err, queue.ErrBackpressure):
			v.Alert = contact.FailureText
			h.render(w, r, http.StatusTooManyRequests, "contact.html", v)
		default:
			h.logger.Error(r.Context(), "contact submission failed", logger.Error(err))
			v.Alert = contact.FailureText
			h.render(w, r, http.StatusServiceUnavailable, "contact.html", v)
		}
		return
	}

	v := contactView(r, contact.Form{})
	v.Notice = receipt.Message
	if v.Notice == "" {
		v.Notice = contact.SuccessText
	}
	h.render(w, r, http.StatusOK, "contact.html", v)
}

// csrfFailure re-renders the form with a fresh token.
func (h *Handler) csrfFailure(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn(r.Context(), "csrf check failed", logger.String("reason", errString(csrf.FailureReason(r))))
	v := contactView(r, contact.Form{})
	v.Alert = ExpiredText
	h.render(w, r, http.StatusForbidden, "contact.html", v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
