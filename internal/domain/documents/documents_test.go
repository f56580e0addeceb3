package documents_test

import (
	"strings"
	"testing"

	"github.com/pauloqxm/portal-comite/internal/domain/documents"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
	. "github.com/smartystreets/goconvey/convey"
)

const sheet = `Operação,Data da Reunião,Reservatório/Sistema,Local da Reunião,Parâmetros aprovados,Vazão média,Apresentação,Ata
2025.1,10/01/2025,Banabuiú,Quixadá,Cota mínima 130 m,1500,http://x/apr.pdf,http://x/ata.pdf
2025.1,10/01/2025,Patu,Quixadá,Liberação reduzida,"200,5 l/s",,nan
2024.2,05/07/2024,Banabuiú,Morada Nova,Sem alteração,300,-,http://x/ata2.pdf
,,,,,,,
2024.2,05/07/2024,Patu,Morada Nova,Aguardar chuvas,sem vazão,,
`

func load(t *testing.T) []documents.Document {
	t.Helper()
	tbl, err := table.Parse(strings.NewReader(sheet))
	if err != nil {
		t.Fatal(err)
	}
	return documents.Parse(tbl)
}

func TestParse(t *testing.T) {
	Convey("Given the documents sheet with the short minutes header", t, func() {
		docs := load(t)

		Convey("Then empty rows are dropped and placeholders cleared", func() {
			So(docs, ShouldHaveLength, 4)
			So(docs[0].Minutes, ShouldEqual, "http://x/ata.pdf")
			So(docs[1].Minutes, ShouldEqual, "")
		})

		Convey("Then options are sorted distinct values", func() {
			opts := documents.BuildOptions(docs)
			So(opts.Operations, ShouldResemble, []string{"2024.2", "2025.1"})
			So(opts.Reservoirs, ShouldResemble, []string{"Banabuiú", "Patu"})
			So(opts.Dates, ShouldHaveLength, 2)
		})
	})
}

func TestFilter(t *testing.T) {
	Convey("Given parsed documents", t, func() {
		docs := load(t)

		Convey("Todos and empty selections keep everything", func() {
			got := documents.Filter{Dates: []string{documents.All}}.Apply(docs)
			So(got, ShouldHaveLength, 4)
			So(documents.CountLabel(len(got)), ShouldEqual, "4 registros encontrados")
		})

		Convey("Selections combine", func() {
			got := documents.Filter{Operations: []string{"2025.1"}, Reservoirs: []string{"Patu"}}.Apply(docs)
			So(got, ShouldHaveLength, 1)
			So(got[0].Parameters, ShouldEqual, "Liberação reduzida")
		})

		Convey("The query searches every field ignoring case", func() {
			So(documents.Filter{Query: "MORADA"}.Apply(docs), ShouldHaveLength, 2)
			So(documents.Filter{Query: "inexistente"}.Apply(docs), ShouldBeEmpty)
		})
	})
}

func TestRows(t *testing.T) {
	Convey("Given documents to list", t, func() {
		rows := documents.Rows(load(t))

		So(rows[0].FlowLabel, ShouldEqual, "1.500 l/s")
		So(rows[0].SlidesLabel, ShouldEqual, "Baixar")
		So(rows[1].FlowLabel, ShouldEqual, "200,5 l/s")
		So(rows[1].SlidesLabel, ShouldEqual, documents.NoLink)
		So(rows[2].SlidesLabel, ShouldEqual, documents.NoLink)
		So(rows[2].MinutesLabel, ShouldEqual, "Baixar")
	})
}

func TestFlowByOperation(t *testing.T) {
	Convey("Given free-text flows", t, func() {
		v, ok := documents.ParseFlow("200,5 l/s")
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 200.5)
		_, ok = documents.ParseFlow("sem vazão")
		So(ok, ShouldBeFalse)

		Convey("Then operations are ordered by total mean flow", func() {
			cmp, ok := documents.FlowByOperation(load(t))
			So(ok, ShouldBeTrue)
			So(cmp.Operations, ShouldResemble, []string{"2025.1", "2024.2"})
			So(cmp.Reservoirs, ShouldResemble, []string{"Banabuiú", "Patu"})
			So(cmp.Bars, ShouldHaveLength, 3)
			So(cmp.Bars[0], ShouldResemble, documents.OperationFlow{Operation: "2025.1", Reservoir: "Banabuiú", Mean: 1500})
			So(cmp.Bars[2].Mean, ShouldEqual, 300)
		})

		Convey("Then no numeric flow reports ok=false", func() {
			_, ok := documents.FlowByOperation([]documents.Document{{Operation: "x", Reservoir: "y", Flow: "n/d"}})
			So(ok, ShouldBeFalse)
		})
	})
}
