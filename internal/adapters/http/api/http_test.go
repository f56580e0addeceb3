package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/pauloqxm/portal-comite/internal/adapters/http/api"
	contactqueue "github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	"github.com/pauloqxm/portal-comite/internal/adapters/sheets"
	service "github.com/pauloqxm/portal-comite/internal/app"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/internal/domain/documents"
	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/internal/domain/reservoir"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func num(v float64) *float64 { return &v }

// mockDependencies serves fixed datasets.
type mockDependencies struct {
	flows      *flow.Dataset
	flowsErr   error
	readings   []reservoir.Reading
	sims       []simulation.Row
	docs       []documents.Document
	layers     map[string]*geo.FeatureCollection
	refreshErr error
	refreshed  int
	receipt    contact.Receipt
	submitErr  error
	submitted  []contact.Form
}

func (m *mockDependencies) Flows(ctx context.Context) (*flow.Dataset, error) {
	if m.flowsErr != nil {
		return nil, m.flowsErr
	}
	return m.flows, nil
}

func (m *mockDependencies) Reservoirs(ctx context.Context) ([]reservoir.Reading, error) {
	return m.readings, nil
}

func (m *mockDependencies) Simulations(ctx context.Context) ([]simulation.Row, error) {
	return m.sims, nil
}

func (m *mockDependencies) Documents(ctx context.Context) ([]documents.Document, error) {
	return m.docs, nil
}

func (m *mockDependencies) Layer(ctx context.Context, name string) (*geo.FeatureCollection, error) {
	if _, err := geo.LayerByName(name); err != nil {
		return nil, err
	}
	return m.layers[name], nil
}

func (m *mockDependencies) Refresh(ctx context.Context) error {
	m.refreshed++
	return m.refreshErr
}

func (m *mockDependencies) SubmitContact(ctx context.Context, form contact.Form) (contact.Receipt, error) {
	m.submitted = append(m.submitted, form)
	if m.submitErr != nil {
		return contact.Receipt{}, m.submitErr
	}
	if _, err := form.Validate(); err != nil {
		return contact.Receipt{}, err
	}
	return m.receipt, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func point(lon, lat float64, props geojson.Properties) *geo.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties = props
	return f
}

func collection(features ...*geo.Feature) *geo.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = features
	return fc
}

func newDeps() *mockDependencies {
	return &mockDependencies{
		flows: &flow.Dataset{Records: []flow.Record{
			{Reservoir: "Banabuiú", Date: day(2025, 1, 1), Operation: "2025.1", Flow: 1000, HasFlow: true, Month: "2025-01"},
			{Reservoir: "Banabuiú", Date: day(2025, 1, 11), Operation: "2025.1", Flow: 2000, HasFlow: true, Month: "2025-01"},
			{Reservoir: "Pedras Brancas", Date: day(2025, 1, 5), Operation: "2025.1", Flow: 500, HasFlow: true, Month: "2025-01"},
		}},
		readings: []reservoir.Reading{
			{Reservoir: "Pirabibu", Municipality: "Quixeramobim", Latitude: -5.3, Longitude: -39.2, Date: day(2025, 3, 1), Percent: num(40), Volume: num(20)},
			{Reservoir: "Pirabibu", Municipality: "Quixeramobim", Latitude: -5.3, Longitude: -39.2, Date: day(2025, 3, 10), Percent: num(45), Volume: num(22)},
			{Reservoir: "Fogareiro", Municipality: "Quixeramobim", Latitude: -5.4, Longitude: -39.3, Date: day(2025, 3, 10), Percent: num(80), Volume: num(90)},
		},
		sims: []simulation.Row{
			{Date: day(2025, 2, 1), Reservoir: "Pedras Brancas", Municipality: "Quixadá", Class: simulation.ClassHigh, Latitude: num(-5.1), Longitude: num(-39.1), Release: num(1.5)},
			{Date: day(2025, 2, 2), Reservoir: "Pedras Brancas", Municipality: "Quixadá", Class: simulation.ClassHigh, Latitude: num(-5.1), Longitude: num(-39.1)},
			{Date: day(2025, 2, 1), Reservoir: "Cipoada", Municipality: "Morada Nova", Class: simulation.ClassLow},
		},
		docs: []documents.Document{
			{Operation: "2024.2", Date: "10/07/2024", Reservoir: "Banabuiú", Flow: "1500", Minutes: "https://example.org/ata.pdf"},
			{Operation: "2025.1", Date: "15/01/2025", Reservoir: "Pirabibu", Flow: "300 l/s", Place: "Quixeramobim"},
		},
		layers: map[string]*geo.FeatureCollection{
			"situacao": collection(
				point(-39.1, -5.1, geojson.Properties{"Classificação": "Alta"}),
				point(-39.2, -5.2, geojson.Properties{"situacao": "Baixa"}),
			),
			"sedes": collection(
				point(-39.25, -5.19, geojson.Properties{"NOME_MUNIC": "Quixeramobim"}),
			),
			"bacia": collection(
				geojson.NewFeature(orb.Polygon{{{-40, -6}, {-38, -6}, {-38, -4}, {-40, -6}}}),
			),
		},
		receipt: contact.Receipt{ID: "abc", Status: contact.StatusAccepted, Message: contact.SuccessText},
	}
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newDeps())

		Convey("Health reports ok as JSON", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Metrics are served in the Prometheus format", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Stats come from the provider", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("The header carries today's date and the menus", func() {
			w := do(mux, http.MethodGet, "/api/v1/header", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["titulo"], ShouldEqual, "Acompanhamento da Operação")
			So(body["data"], ShouldContainSubstring, " de ")
			So(body["menus"], ShouldHaveLength, 2)
		})

		Convey("Tiles list every basemap with the default view", func() {
			w := do(mux, http.MethodGet, "/api/v1/tiles", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["tiles"], ShouldHaveLength, len(geo.Tiles))
			So(body["zoom"], ShouldEqual, float64(geo.DefaultZoom))
		})

		Convey("Unknown paths are 404", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Read endpoints reject POST", func() {
			So(do(mux, http.MethodPost, "/api/v1/flows", "{}").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestFlowsHandler(t *testing.T) {
	Convey("Given the flow endpoints", t, func() {
		deps := newDeps()
		mux := newMux(deps)

		Convey("All records are returned without filters", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			kpis := body["kpis"].(map[string]interface{})
			So(kpis["registros"], ShouldEqual, 3.0)
			So(kpis["reservatorios"], ShouldEqual, 2.0)
			So(body["volumes"], ShouldHaveLength, 2)
			So(body, ShouldNotContainKey, "message")
		})

		Convey("Repeated reservoir parameters narrow the selection", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows?reservatorio=Banabui%C3%BA&unidade=m3/s", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			ev := body["evolucao"].(map[string]interface{})
			So(ev["unidade"], ShouldEqual, "m³/s")
			So(ev["series"], ShouldHaveLength, 1)
			So(ev, ShouldContainKey, "media_ponderada")
		})

		Convey("An empty selection carries the info text", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows?inicio=2030-01-01", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["message"], ShouldEqual, "Nenhum dado encontrado com os filtros aplicados.")
		})

		Convey("Day-first dates are accepted", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows?inicio=05/01/2025&fim=05/01/2025", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["tabela"], ShouldHaveLength, 1)
		})

		Convey("A malformed date is a bad request", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows?inicio=ontem", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("An inverted interval is a bad request", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows?inicio=2025-02-01&fim=2025-01-01", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A failed sheet fetch is a bad gateway", func() {
			deps.flowsErr = fmt.Errorf("%w: flows: timeout", sheets.ErrFetch)
			w := do(mux, http.MethodGet, "/api/v1/flows", "")
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode(w)["code"], ShouldEqual, "upstream_error")
		})

		Convey("A stopped service is unavailable", func() {
			deps.flowsErr = service.ErrNotStarted
			w := do(mux, http.MethodGet, "/api/v1/flows", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "unavailable")
		})

		Convey("Monthly averages are grouped by month", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows/monthly", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["meses"], ShouldResemble, []interface{}{"Jan/2025"})
			So(body["barras"], ShouldHaveLength, 2)
		})

		Convey("Monthly averages of nothing carry the info text", func() {
			w := do(mux, http.MethodGet, "/api/v1/flows/monthly?operacao=1999.1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["message"], ShouldEqual, "Sem dados para calcular a média.")
		})
	})
}

func TestReservoirsHandler(t *testing.T) {
	Convey("Given the reservoir endpoints", t, func() {
		mux := newMux(newDeps())

		Convey("The default window is the latest collection date", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["tabela"], ShouldHaveLength, 2)
			m := body["mapa"].(map[string]interface{})
			So(m["marcadores"], ShouldHaveLength, 2)
		})

		Convey("The percent range filters rows", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs?percentual_min=50&percentual_max=100", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["tabela"], ShouldHaveLength, 1)
		})

		Convey("An inverted percent range is a bad request", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs?percentual_min=60&percentual_max=10", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("No match carries the info text", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs?reservatorio=Nenhum", "")
			So(decode(w)["message"], ShouldEqual, "Não há reservatórios com os filtros aplicados.")
		})

		Convey("The CSV export is an attachment", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs/export.csv?inicio=2025-03-01", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
			So(w.Header().Get("Content-Disposition"), ShouldStartWith, `attachment; filename="reservatorios_`)
			So(w.Header().Get("Content-Disposition"), ShouldEndWith, `.csv"`)
			So(strings.Count(w.Body.String(), "\n"), ShouldEqual, 4)
		})

		Convey("The XLSX export is a zip package", func() {
			w := do(mux, http.MethodGet, "/api/v1/reservoirs/export.xlsx", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), ShouldBeTrue)
		})
	})
}

func TestSimulationsHandler(t *testing.T) {
	Convey("Given the simulation endpoint", t, func() {
		mux := newMux(newDeps())

		Convey("Filtering by class keeps matching rows and areas", func() {
			w := do(mux, http.MethodGet, "/api/v1/simulations?classificacao=alta", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["tabela"], ShouldHaveLength, 2)
			kpis := body["kpis"].(map[string]interface{})
			So(kpis["vazao_simulada_m3h"], ShouldEqual, 5400.0)
			So(kpis["dias_periodo"], ShouldEqual, 1.0)

			m := body["mapa"].(map[string]interface{})
			So(m["marcadores"], ShouldHaveLength, 2)
			So(m, ShouldContainKey, "limites")
			situation := m["situacao"].(map[string]interface{})
			So(situation["features"], ShouldHaveLength, 1)
		})

		Convey("A class without areas reports the empty layer", func() {
			w := do(mux, http.MethodGet, "/api/v1/simulations?classificacao=Fora+de+Criticidade", "")
			body := decode(w)
			So(body["message"], ShouldEqual, "Não há dados para os filtros selecionados.")
			m := body["mapa"].(map[string]interface{})
			So(m["mensagens"], ShouldContain, "Nenhuma área da camada 'Situação da Bacia' corresponde à Classificação selecionada.")
		})
	})
}

func TestDocumentsHandler(t *testing.T) {
	Convey("Given the documents endpoint", t, func() {
		mux := newMux(newDeps())

		Convey("The full list is formatted", func() {
			w := do(mux, http.MethodGet, "/api/v1/documents", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["total"], ShouldEqual, "2 registros encontrados")
			rows := body["documentos"].([]interface{})
			first := rows[0].(map[string]interface{})
			So(first["vazao_formatada"], ShouldEqual, "1.500 l/s")
			So(first["ata_rotulo"], ShouldEqual, "Baixar")
			So(first["apresentacao_rotulo"], ShouldEqual, "—")
			So(body, ShouldContainKey, "vazoes_por_operacao")
		})

		Convey("The search matches any field case-insensitively", func() {
			w := do(mux, http.MethodGet, "/api/v1/documents?busca=QUIXERAMOBIM&operacao=Todos", "")
			body := decode(w)
			So(body["total"], ShouldEqual, "1 registros encontrados")
		})
	})
}

func TestLayersHandler(t *testing.T) {
	Convey("Given the layer endpoints", t, func() {
		mux := newMux(newDeps())

		Convey("The catalogue lists every layer", func() {
			var layers []geo.Layer
			w := do(mux, http.MethodGet, "/api/v1/layers/", "")
			So(json.Unmarshal(w.Body.Bytes(), &layers), ShouldBeNil)
			So(layers, ShouldHaveLength, len(geo.Layers))
		})

		Convey("A present layer is returned as GeoJSON", func() {
			w := do(mux, http.MethodGet, "/api/v1/layers/sedes", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["type"], ShouldEqual, "FeatureCollection")
		})

		Convey("The situation layer can be narrowed by class", func() {
			w := do(mux, http.MethodGet, "/api/v1/layers/situacao?classificacao=Criticidade+Baixa", "")
			So(decode(w)["features"], ShouldHaveLength, 1)
		})

		Convey("Bounds and seats are derived views", func() {
			w := do(mux, http.MethodGet, "/api/v1/layers/bacia/bounds", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			b := decode(w)
			So(b["min_lat"], ShouldEqual, -6.0)
			So(b["max_lon"], ShouldEqual, -38.0)

			w = do(mux, http.MethodGet, "/api/v1/layers/sedes/seats", "")
			var seats []geo.Seat
			So(json.Unmarshal(w.Body.Bytes(), &seats), ShouldBeNil)
			So(seats, ShouldResemble, []geo.Seat{{Name: "Quixeramobim", Latitude: -5.19, Longitude: -39.25}})
		})

		Convey("A missing file and an unknown name are both 404", func() {
			So(do(mux, http.MethodGet, "/api/v1/layers/trechos", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/api/v1/layers/rios", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/api/v1/layers/sedes/other", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRefreshHandler(t *testing.T) {
	Convey("Given the refresh endpoint", t, func() {
		deps := newDeps()
		mux := newMux(deps)

		Convey("POST reloads the datasets", func() {
			w := do(mux, http.MethodPost, "/api/v1/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.refreshed, ShouldEqual, 1)
		})

		Convey("GET is not routed", func() {
			So(do(mux, http.MethodGet, "/api/v1/refresh", "").Code, ShouldEqual, http.StatusNotFound)
			So(deps.refreshed, ShouldEqual, 0)
		})

		Convey("A failed reload is a bad gateway", func() {
			deps.refreshErr = errors.New("flows: boom")
			So(do(mux, http.MethodPost, "/api/v1/refresh", "").Code, ShouldEqual, http.StatusBadGateway)
		})
	})
}

func TestContactHandler(t *testing.T) {
	Convey("Given the contact endpoint", t, func() {
		deps := newDeps()
		mux := newMux(deps)
		valid := `{"nome":"Maria","email":"maria@example.org","cidade_estado":"Quixadá/CE",
			"assunto":"Açude","descricao":"Nível baixo","lgpd_consentimento":true}`

		Convey("A valid form is accepted", func() {
			w := do(mux, http.MethodPost, "/api/v1/contact", valid)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			body := decode(w)
			So(body["status"], ShouldEqual, contact.StatusAccepted)
			So(body["mensagem"], ShouldEqual, contact.SuccessText)
			So(deps.submitted, ShouldHaveLength, 1)
			So(deps.submitted[0].Name, ShouldEqual, "Maria")
		})

		Convey("A duplicate is acknowledged with 200", func() {
			deps.receipt = contact.Receipt{Status: contact.StatusDuplicate, Message: contact.SuccessText}
			So(do(mux, http.MethodPost, "/api/v1/contact", valid).Code, ShouldEqual, http.StatusOK)
		})

		Convey("An invalid form lists its fields", func() {
			w := do(mux, http.MethodPost, "/api/v1/contact", `{"nome":"Maria"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decode(w)
			So(body["message"], ShouldEqual, contact.InvalidText)
			fields := body["fields"].(map[string]interface{})
			So(fields, ShouldContainKey, "email")
			So(fields, ShouldContainKey, "lgpd_consentimento")
		})

		Convey("Malformed JSON is a bad request", func() {
			So(do(mux, http.MethodPost, "/api/v1/contact", `{"nome":`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Bodies that are not JSON are refused before submission", func() {
			for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded", "multipart/form-data; boundary=x"} {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(valid))
				if ct != "" {
					req.Header.Set("Content-Type", ct)
				}
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusUnsupportedMediaType)
				So(decode(w)["code"], ShouldEqual, "unsupported_media_type")
			}
			So(deps.submitted, ShouldBeEmpty)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(valid))
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("A full queue is reported as backpressure", func() {
			deps.submitErr = fmt.Errorf("contact queue full: %w", contactqueue.ErrBackpressure)
			w := do(mux, http.MethodPost, "/api/v1/contact", valid)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			body := decode(w)
			So(body["code"], ShouldEqual, "backpressure")
			So(body["message"], ShouldEqual, contact.FailureText)
		})
	})
}
