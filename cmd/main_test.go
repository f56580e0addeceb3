package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/pauloqxm/portal-comite/internal/config"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(new(strings.Builder))
}

const flowsCSV = "Reservatório Monitorado,Data,Operação,Vazão Operada\n" +
	"Banabuiú,01/01/2025,2025.1,1000\n" +
	"Banabuiú,11/01/2025,2025.1,2000\n" +
	"Pedras Brancas,05/01/2025,2025.1,500\n"

func testConfig(t *testing.T, upstream string) *config.Config {
	cfg := config.New(context.Background())
	cfg.GeoJSONDir = t.TempDir()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "portal.db")
	cfg.RefreshCron = ""
	cfg.ContactWorkers = 1
	cfg.FlowsURL = upstream + "/flows.csv"
	cfg.ReservoirsURL = upstream + "/missing.csv"
	cfg.SimulationsURL = upstream + "/missing.csv"
	cfg.DocumentsURL = upstream + "/missing.csv"
	return cfg
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("PORTAL_ADDR", ":9090")
			t.Setenv("PORTAL_CONTACT_QUEUE_SIZE", "50")
			t.Setenv("PORTAL_CONTACT_WORKERS", "3")

			convey.Convey("Then the overrides are applied", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ContactQueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.ContactWorkers, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When wiring the service and routes", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/flows.csv" {
					http.NotFound(w, r)
					return
				}
				w.Header().Set("Content-Type", "text/csv")
				_, _ = w.Write([]byte(flowsCSV))
			}))
			defer upstream.Close()

			ctx := context.Background()
			cfg := testConfig(t, upstream.URL)
			svc, err := newService(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			mux, err := newMux(ctx, cfg, svc)
			convey.So(err, convey.ShouldBeNil)

			get := func(path string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				return w
			}

			convey.Convey("Then every surface is mounted", func() {
				for path, status := range map[string]int{
					"/healthz":                    http.StatusOK,
					"/metrics":                    http.StatusOK,
					"/stats":                      http.StatusOK,
					"/api-docs":                   http.StatusOK,
					"/openapi.yaml":               http.StatusOK,
					"/":                           http.StatusOK,
					"/comite":                     http.StatusOK,
					"/fale-conosco":               http.StatusOK,
					"/api/v1/header":              http.StatusOK,
					"/api/v1/tiles":               http.StatusOK,
					"/charts/flows/evolution.svg": http.StatusOK,
					"/nope":                       http.StatusNotFound,
				} {
					convey.So(get(path).Code, convey.ShouldEqual, status)
				}
			})

			convey.Convey("Then flows are read from the published sheet", func() {
				w := get("/api/v1/flows?reservatorio=Banabui%C3%BA")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				var body struct {
					KPIs struct {
						Reservoirs int `json:"reservatorios"`
						Records    int `json:"registros"`
					} `json:"kpis"`
				}
				convey.So(json.Unmarshal(w.Body.Bytes(), &body), convey.ShouldBeNil)
				convey.So(body.KPIs.Reservoirs, convey.ShouldEqual, 1)
				convey.So(body.KPIs.Records, convey.ShouldEqual, 2)
			})

			convey.Convey("Then an unreachable sheet is an upstream error", func() {
				w := get("/api/v1/reservoirs")
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadGateway)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "upstream_error")
			})

			convey.Convey("Then a contact submission is accepted", func() {
				body := `{"nome":"Maria","email":"maria@example.com","cidade_estado":"Quixadá/CE",` +
					`"assunto":"Vazão","descricao":"Qual a vazão?","lgpd_consentimento":true}`
				req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusAccepted)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the metrics updaters run until cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When updating metrics directly", func() {
			cfg := testConfig(t, "http://127.0.0.1:0")
			svc, err := newService(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)

			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)

			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the CSRF key is missing", func() {
			cfg := testConfig(t, "http://127.0.0.1:0")
			cfg.CSRFKey = ""
			svc, err := newService(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then a random key is generated", func() {
				mux, err := newMux(context.Background(), cfg, svc)
				convey.So(err, convey.ShouldBeNil)
				convey.So(mux, convey.ShouldNotBeNil)
			})
		})
	})
}
