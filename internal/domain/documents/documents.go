// Package documents lists the committee's official documents (meeting
// minutes, presentations and approved parameters) and compares the mean
// flows approved per operation.
package documents

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
	"github.com/pauloqxm/portal-comite/internal/domain/table"
)

// Sheet columns.
const (
	ColOperation  = "Operação"
	ColDate       = "Data da Reunião"
	ColReservoir  = "Reservatório/Sistema"
	ColPlace      = "Local da Reunião"
	ColParameters = "Parâmetros aprovados"
	ColFlow       = "Vazão média"
	ColSlides     = "Apresentação"
	ColMinutes    = "Ata da Reunião"
	colMinutesAlt = "Ata"
)

// All selects every value of a single-choice filter.
const All = "Todos"

// NoLink is shown for documents without a file.
const NoLink = "—"

// Document is one row of the documents sheet.
type Document struct {
	Operation  string `json:"operacao"`
	Date       string `json:"data_reuniao"`
	Reservoir  string `json:"reservatorio_sistema"`
	Place      string `json:"local_reuniao"`
	Parameters string `json:"parametros_aprovados"`
	Flow       string `json:"vazao_media"`
	Slides     string `json:"apresentacao"`
	Minutes    string `json:"ata_reuniao"`
}

func (d Document) fields() []string {
	return []string{d.Operation, d.Date, d.Reservoir, d.Place, d.Parameters, d.Flow, d.Slides, d.Minutes}
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

// Parse reads the documents sheet. Rows with every field empty are dropped.
func Parse(t *table.Table) []Document {
	if !t.Has(ColMinutes) {
		t.Rename(colMinutesAlt, ColMinutes)
	}
	out := make([]Document, 0, t.Len())
	for _, row := range t.Rows {
		d := Document{
			Operation:  clean(t.Value(row, ColOperation)),
			Date:       clean(t.Value(row, ColDate)),
			Reservoir:  clean(t.Value(row, ColReservoir)),
			Place:      clean(t.Value(row, ColPlace)),
			Parameters: clean(t.Value(row, ColParameters)),
			Flow:       clean(t.Value(row, ColFlow)),
			Slides:     clean(t.Value(row, ColSlides)),
			Minutes:    clean(t.Value(row, ColMinutes)),
		}
		if strings.Join(d.fields(), "") == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Options are the distinct sorted values offered by the filters.
type Options struct {
	Operations []string `json:"operacoes"`
	Dates      []string `json:"datas"`
	Reservoirs []string `json:"reservatorios"`
}

func distinct(docs []Document, get func(Document) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, d := range docs {
		v := get(d)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// BuildOptions lists filter values.
func BuildOptions(docs []Document) Options {
	return Options{
		Operations: distinct(docs, func(d Document) string { return d.Operation }),
		Dates:      distinct(docs, func(d Document) string { return d.Date }),
		Reservoirs: distinct(docs, func(d Document) string { return d.Reservoir }),
	}
}

// Filter narrows the list. Empty lists or "Todos" select everything; Query
// is a case-insensitive substring matched against every field.
type Filter struct {
	Operations []string
	Dates      []string
	Reservoirs []string
	Query      string
}

func selection(values []string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if v == All {
			return nil
		}
		m[v] = struct{}{}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func in(m map[string]struct{}, v string) bool {
	if m == nil {
		return true
	}
	_, ok := m[v]
	return ok
}

// Apply returns the matching documents in sheet order.
func (f Filter) Apply(docs []Document) []Document {
	ops, dates, res := selection(f.Operations), selection(f.Dates), selection(f.Reservoirs)
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !in(ops, d.Operation) || !in(dates, d.Date) || !in(res, d.Reservoir) {
			continue
		}
		if q != "" && !matches(d, q) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func matches(d Document, q string) bool {
	for _, v := range d.fields() {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// CountLabel renders the result count line.
func CountLabel(n int) string {
	return fmt.Sprintf("%d registros encontrados", n)
}

// Row is a document formatted for the listing table.
type Row struct {
	Document
	FlowLabel    string `json:"vazao_formatada"`
	SlidesLabel  string `json:"apresentacao_rotulo"`
	MinutesLabel string `json:"ata_rotulo"`
}

// LinkLabel is "Baixar" for a usable link and "—" otherwise.
func LinkLabel(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || u == "-" {
		return NoLink
	}
	return "Baixar"
}

// FormatFlow renders a plain numeric flow as integer thousands with " l/s";
// anything else is shown as written.
func FormatFlow(s string) string {
	if s == "" {
		return ""
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	return ptbr.FormatDecimal(math.Trunc(v), 0) + " l/s"
}

// Rows formats documents for the listing.
func Rows(docs []Document) []Row {
	out := make([]Row, 0, len(docs))
	for _, d := range docs {
		out = append(out, Row{
			Document:     d,
			FlowLabel:    FormatFlow(d.Flow),
			SlidesLabel:  LinkLabel(d.Slides),
			MinutesLabel: LinkLabel(d.Minutes),
		})
	}
	return out
}

var firstNumber = regexp.MustCompile(`(\d+\.?\d*)`) //nolint:gochecknoglobals // compiled once

// ParseFlow extracts the first number of a free-text flow such as
// "150,5 l/s (média)".
func ParseFlow(s string) (float64, bool) {
	m := firstNumber.FindString(strings.ReplaceAll(s, ",", "."))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// OperationFlow is the mean approved flow of a reservoir in one operation.
type OperationFlow struct {
	Operation string  `json:"operacao"`
	Reservoir string  `json:"reservatorio_sistema"`
	Mean      float64 `json:"vazao_ls"`
}

// FlowComparison feeds the operation-by-flow bar chart.
type FlowComparison struct {
	Operations []string        `json:"operacoes"`
	Reservoirs []string        `json:"reservatorios"`
	Bars       []OperationFlow `json:"barras"`
}

// FlowByOperation averages parsed flows per (operation, reservoir).
// Operations are ordered by their summed means, largest first; reservoirs
// by name. ok is false when no row has a numeric flow.
func FlowByOperation(docs []Document) (FlowComparison, bool) {
	type key struct{ op, res string }
	type acc struct {
		sum float64
		n   int
	}
	groups := map[key]*acc{}
	var order []key
	for _, d := range docs {
		if d.Operation == "" || d.Reservoir == "" {
			continue
		}
		v, ok := ParseFlow(d.Flow)
		if !ok {
			continue
		}
		k := key{d.Operation, d.Reservoir}
		a, seen := groups[k]
		if !seen {
			a = &acc{}
			groups[k] = a
			order = append(order, k)
		}
		a.sum += v
		a.n++
	}
	if len(order) == 0 {
		return FlowComparison{Operations: []string{}, Reservoirs: []string{}, Bars: []OperationFlow{}}, false
	}

	totals := map[string]float64{}
	reservoirs := map[string]struct{}{}
	bars := make([]OperationFlow, 0, len(order))
	for _, k := range order {
		a := groups[k]
		mean := a.sum / float64(a.n)
		totals[k.op] += mean
		reservoirs[k.res] = struct{}{}
		bars = append(bars, OperationFlow{Operation: k.op, Reservoir: k.res, Mean: mean})
	}

	ops := make([]string, 0, len(totals))
	for op := range totals {
		ops = append(ops, op)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if totals[ops[i]] != totals[ops[j]] {
			return totals[ops[i]] > totals[ops[j]]
		}
		return ops[i] < ops[j]
	})
	res := make([]string, 0, len(reservoirs))
	for r := range reservoirs {
		res = append(res, r)
	}
	sort.Strings(res)

	rank := make(map[string]int, len(ops))
	for i, op := range ops {
		rank[op] = i
	}
	sort.SliceStable(bars, func(i, j int) bool {
		if rank[bars[i].Operation] != rank[bars[j].Operation] {
			return rank[bars[i].Operation] < rank[bars[j].Operation]
		}
		return bars[i].Reservoir < bars[j].Reservoir
	})
	return FlowComparison{Operations: ops, Reservoirs: res, Bars: bars}, true
}
