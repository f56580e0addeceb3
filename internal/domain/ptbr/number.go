// Package ptbr parses and formats numbers and dates the way the basin
// committee's spreadsheets and pages write them (Brazilian Portuguese).
package ptbr

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseNumber reads a spreadsheet cell as a float. It accepts "12,5", "12.5",
// "1.234,56" and a trailing "%". Empty cells and placeholders ("nan", "-",
// "—") report ok=false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	switch strings.ToLower(s) {
	case "", "nan", "-", "—", "none", "null", "n/a":
		return 0, false
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

var printer = message.NewPrinter(language.BrazilianPortuguese) //nolint:gochecknoglobals // shared printer

// FormatDecimal renders v with "." as thousands separator and "," as the
// decimal mark, e.g. 1234.5 -> "1.234,50". Values that round to zero lose
// their sign.
func FormatDecimal(v float64, places int) string {
	if math.IsNaN(v) {
		return "—"
	}
	if strings.Trim(strconv.FormatFloat(math.Abs(v), 'f', places, 64), "0.") == "" {
		v = 0
	}
	return printer.Sprint(number.Decimal(v, number.Scale(places)))
}

// FormatVolumeM3 renders a volume in cubic metres with a magnitude suffix.
func FormatVolumeM3(v float64) string {
	switch {
	case math.IsNaN(v):
		return "—"
	case v >= 1_000_000:
		return FormatDecimal(v/1e6, 2) + " mi m³"
	case v >= 1_000:
		return FormatDecimal(v/1e3, 2) + " mil m³"
	default:
		return FormatDecimal(v, 2) + " m³"
	}
}

// FormatFlowLabel renders a flow value for a bar label: three decimals below
// 1000, thousands-grouped with two decimals above.
func FormatFlowLabel(v float64, unit string) string {
	if math.IsNaN(v) {
		return "- " + unit
	}
	if math.Abs(v) < 1000 {
		return strconv.FormatFloat(v, 'f', 3, 64) + " " + unit
	}
	return FormatDecimal(v, 2) + " " + unit
}

// FormatVolumeLegacy is the volume format of the older simulation sheet.
func FormatVolumeLegacy(v float64) string {
	switch {
	case v >= 1_000_000:
		return strconv.FormatFloat(v/1e6, 'f', 2, 64) + " milhões/m³"
	case v > 0:
		return strconv.FormatFloat(v/1e3, 'f', 2, 64) + " mil/m³"
	default:
		return "0 m³"
	}
}
