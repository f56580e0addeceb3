package api

import (
	"net/http"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
)

// Link is one entry of a header menu.
type Link struct {
	Label string `json:"rotulo"`
	URL   string `json:"url"`
}

// Menu groups header links under a button.
type Menu struct {
	Title string `json:"titulo"`
	Links []Link `json:"links"`
}

// Header is the banner shown on every page.
type Header struct {
	Title    string `json:"titulo"`
	Subtitle string `json:"subtitulo"`
	Date     string `json:"data"`
	Menus    []Menu `json:"menus"`
}

var headerMenus = []Menu{ //nolint:gochecknoglobals // static navigation
	{Title: "Sistema", Links: []Link{
		{Label: "SRH", URL: "https://www.srh.ce.gov.br/"},
		{Label: "COGERH", URL: "https://www.cogerh.com.br/"},
		{Label: "SOHIDRA", URL: "https://www.sohidra.ce.gov.br/"},
		{Label: "FUNCEME", URL: "https://www.funceme.br/"},
	}},
	{Title: "Comitê", Links: []Link{
		{Label: "Institucional", URL: "https://www.cbhbanabuiu.com.br/institucional/"},
		{Label: "Regimento", URL: "https://www.cbhbanabuiu.com.br/institucional/Regimento/"},
		{Label: "A Bacia", URL: "https://www.cbhbanabuiu.com.br/institucional/conheca-nossa-bacia-hidrografica/"},
	}},
}

// CurrentHeader renders the banner with today's date in Brasilia time.
func CurrentHeader() Header {
	return Header{
		Title:    "Acompanhamento da Operação",
		Subtitle: "Bacia do Banabuiú",
		Date:     ptbr.HeaderDate(ptbr.Now()),
		Menus:    headerMenus,
	}
}

// HeaderHandler serves the page banner.
type HeaderHandler struct{}

// NewHeaderHandler creates a new header handler.
func NewHeaderHandler() *HeaderHandler {
	return &HeaderHandler{}
}

// HandleGetHeader handles GET /api/v1/header requests.
func (h *HeaderHandler) HandleGetHeader(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, CurrentHeader())
}
