// Package site serves the portal's HTML pages: the markdown home and
// committee pages and the "Fale Conosco" form.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/pauloqxm/portal-comite/internal/adapters/http/api"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("site: render failed")
)

// CSRFField is the form field carrying the CSRF token.
const CSRFField = "csrf_token"

// Dependencies accepts contact submissions.
type Dependencies interface {
	SubmitContact(ctx context.Context, form contact.Form) (contact.Receipt, error)
}

// Options configure the form protection.
type Options struct {
	// CSRFKey must be 32 bytes.
	CSRFKey []byte
	// Secure marks the CSRF cookie HTTPS-only.
	Secure bool
}

// Handler renders the HTML pages.
type Handler struct {
	deps      Dependencies
	pages     map[string]*template.Template
	home      template.HTML
	committee template.HTML
	protect   func(http.Handler) http.Handler
	logger    logger.Logger
}

// view is the data every template receives.
type view struct {
	Header api.Header
	Title  string
	Page   string
	Body   template.HTML

	CSRF           template.HTML
	Form           contact.Form
	Errors         map[string]string
	Notice         string
	Alert          string
	Kinds          []string
	Channels       []string
	MaxDescription int
	PrivacyURL     string
}

// NewHandler renders the markdown pages and parses the templates once.
func NewHandler(deps Dependencies, opts Options) (*Handler, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	h := &Handler{
		deps:   deps,
		pages:  map[string]*template.Template{},
		logger: logger.Named("site"),
	}
	h.protect = csrf.Protect(opts.CSRFKey,
		csrf.Secure(opts.Secure),
		csrf.FieldName(CSRFField),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(h.csrfFailure)),
	)
	for name, dst := range map[string]*template.HTML{"home.md": &h.home, "comite.md": &h.committee} {
		src, err := contentFS.ReadFile("content/" + name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRender, name, err)
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRender, name, err)
		}
		*dst = template.HTML(buf.String()) //nolint:gosec // embedded content
	}
	for _, name := range []string{"page.html", "contact.html"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRender, name, err)
		}
		h.pages[name] = t
	}
	return h, nil
}

// Register attaches the site routes to mux.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/", api.MetricsMiddleware(h.HandleHome, "site_home"))
	mux.HandleFunc("/comite", api.MetricsMiddleware(h.HandleCommittee, "site_committee"))
	mux.HandleFunc("/fale-conosco", api.MetricsMiddleware(h.protect(http.HandlerFunc(h.HandleContact)).ServeHTTP, "site_contact"))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	v.Header = api.CurrentHeader()
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", v); err != nil {
		h.logger.Error(r.Context(), "template failed", logger.String("page", v.Page), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func getOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// HandleHome handles GET / requests. Any other unmatched path is a 404.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !getOnly(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, "page.html", view{Title: "Página Inicial", Page: "home", Body: h.home})
}

// HandleCommittee handles GET /comite requests.
func (h *Handler) HandleCommittee(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, "page.html", view{Title: "O Comitê", Page: "comite", Body: h.committee})
}
