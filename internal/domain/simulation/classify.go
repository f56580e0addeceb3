package simulation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical classes.
const (
	ClassHigh    = "Criticidade Alta"
	ClassMedium  = "Criticidade Média"
	ClassLow     = "Criticidade Baixa"
	ClassOutside = "Fora de Criticidade"
	ClassNone    = "Sem classificação"
)

// Classes lists the canonical classes in display order.
var Classes = []string{ClassHigh, ClassMedium, ClassLow, ClassOutside, ClassNone} //nolint:gochecknoglobals // class order

// Colors maps each canonical class to its map colour.
var Colors = map[string]string{ //nolint:gochecknoglobals // class palette
	ClassHigh:    "#E24F42",
	ClassMedium:  "#ECC116",
	ClassLow:     "#F4FA4A",
	ClassOutside: "#8DCC90",
	ClassNone:    "#999999",
}

var aliases = map[string]string{ //nolint:gochecknoglobals // alias table
	"criticidade alta":    ClassHigh,
	"alta":                ClassHigh,
	"criticidade media":   ClassMedium,
	"media":               ClassMedium,
	"criticidade baixa":   ClassLow,
	"baixa":               ClassLow,
	"fora de criticidade": ClassOutside,
	"fora criticidade":    ClassOutside,
	"fora da criticidade": ClassOutside,
	"normal":              ClassOutside,
	"sem classificacao":   ClassNone,
	"sem class":           ClassNone,
	"na":                  ClassNone,
	"":                    ClassNone,
}

// fold strips accents, collapses whitespace and lowercases.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// Canonical maps a free-text classification label to one of Classes.
// Unknown labels become "Sem classificação".
func Canonical(label string) string {
	key := fold(label)
	if c, ok := aliases[key]; ok {
		return c
	}
	if c, ok := aliases[strings.ReplaceAll(key, ".", "")]; ok {
		return c
	}
	return ClassNone
}
