package charts_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/pauloqxm/portal-comite/internal/adapters/http/charts"
	"github.com/pauloqxm/portal-comite/internal/domain/flow"
	"github.com/pauloqxm/portal-comite/internal/domain/simulation"
)

type fakeDeps struct {
	flows *flow.Dataset
	sims  []simulation.Row
}

func (f *fakeDeps) Flows(ctx context.Context) (*flow.Dataset, error) { return f.flows, nil }

func (f *fakeDeps) Simulations(ctx context.Context) ([]simulation.Row, error) { return f.sims, nil }

func day(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }

func num(v float64) *float64 { return &v }

func fixtures() *fakeDeps {
	return &fakeDeps{
		flows: &flow.Dataset{Allocated: true, Records: []flow.Record{
			{Reservoir: "Banabuiú", Date: day(1), Operation: "2025.1", Flow: 1000, HasFlow: true, Month: "2025-01", Allocated: 1200, HasAllocated: true},
			{Reservoir: "Banabuiú", Date: day(11), Operation: "2025.1", Flow: 2000, HasFlow: true, Month: "2025-01", Allocated: 1200, HasAllocated: true},
			{Reservoir: "Pedras Brancas", Date: day(5), Operation: "2025.1", Flow: 500, HasFlow: true, Month: "2025-01"},
		}},
		sims: []simulation.Row{
			{Date: day(1), Reservoir: "Cipoada", Class: simulation.ClassLow, SimulatedLevel: num(120.5), ObservedLevel: num(120.1), Volume: num(8e6)},
			{Date: day(2), Reservoir: "Cipoada", Class: simulation.ClassLow, SimulatedLevel: num(120.3), Volume: num(7.9e6)},
		},
	}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestChartRoutes(t *testing.T) {
	Convey("Given the chart routes", t, func() {
		mux := http.NewServeMux()
		charts.NewHandler(fixtures()).Register(mux)

		for _, path := range []string{
			"/charts/flows/evolution.svg",
			"/charts/flows/volumes.svg",
			"/charts/flows/monthly.svg",
			"/charts/simulations/cotas.svg",
			"/charts/simulations/volumes.svg",
		} {
			Convey(path+" renders SVG", func() {
				w := get(mux, path)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/svg+xml")
				So(w.Body.String(), ShouldContainSubstring, "<svg")
			})
		}

		Convey("A single reservoir gets its weighted mean line", func() {
			w := get(mux, "/charts/flows/evolution.svg?reservatorio=Banabui%C3%BA")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Média ponderada")
		})

		Convey("An empty selection is reported as JSON", func() {
			w := get(mux, "/charts/flows/volumes.svg?reservatorio=Nenhum")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, charts.NoDataText)
		})

		Convey("Out of range sizes are rejected", func() {
			So(get(mux, "/charts/flows/evolution.svg?largura=10").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/charts/flows/evolution.svg?altura=abc").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Only GET is routed", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/charts/flows/evolution.svg", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRenderers(t *testing.T) {
	Convey("Renderers refuse empty input", t, func() {
		var buf bytes.Buffer
		So(charts.Evolution(&buf, flow.Evolution{Unit: flow.LitersPerSecond}, charts.Size{}), ShouldEqual, charts.ErrNoData)
		So(charts.Volumes(&buf, nil, charts.Size{}), ShouldEqual, charts.ErrNoData)
		So(charts.Monthly(&buf, flow.Monthly{}, charts.Size{}), ShouldEqual, charts.ErrNoData)
		So(charts.Simulated(&buf, "t", "y", []simulation.Series{{Name: "x", Points: []simulation.Point{{Date: day(1)}}}}, charts.Size{}), ShouldEqual, charts.ErrNoData)
		So(buf.Len(), ShouldEqual, 0)
	})

	Convey("A single reading still renders", t, func() {
		var buf bytes.Buffer
		ev := flow.Evolution{Unit: flow.LitersPerSecond, Series: []flow.Series{{
			Name: "Fogareiro", Color: "#1f77b4", Points: []flow.Point{{Date: day(3), Value: 10}},
		}}}
		So(charts.Evolution(&buf, ev, charts.Size{Width: 640, Height: 320}), ShouldBeNil)
		So(strings.HasPrefix(strings.TrimSpace(buf.String()), "<svg"), ShouldBeTrue)
	})
}
