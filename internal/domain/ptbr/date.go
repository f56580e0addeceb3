package ptbr

import (
	"fmt"
	"strings"
	"time"
)

// Brasilia is the committee's local time (UTC-3, no daylight saving).
var Brasilia = time.FixedZone("BRT", -3*60*60) //nolint:gochecknoglobals // fixed zone

var dateLayouts = []string{ //nolint:gochecknoglobals // parse order matters
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var monthAbbrev = [...]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"} //nolint:gochecknoglobals // lookup

var monthNames = [...]string{ //nolint:gochecknoglobals // lookup
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

var weekdayNames = [...]string{ //nolint:gochecknoglobals // lookup
	"Domingo", "Segunda-feira", "Terça-feira", "Quarta-feira", "Quinta-feira", "Sexta-feira", "Sábado",
}

// ParseDate reads a day-first date. The result is the calendar day at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// FormatDate renders dd/mm/yyyy, or "—" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("02/01/2006")
}

// MonthAbbrev returns the three-letter Portuguese month abbreviation.
func MonthAbbrev(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthAbbrev[m-1]
}

// MonthRef renders "Mmm/YYYY", e.g. "Mar/2025".
func MonthRef(t time.Time) string {
	return fmt.Sprintf("%s/%d", MonthAbbrev(t.Month()), t.Year())
}

// ParseMonthRef turns "Mmm/YYYY" into year*100+month for chronological sorting.
func ParseMonthRef(ref string) (int, bool) {
	abbr, year, ok := strings.Cut(ref, "/")
	if !ok {
		return 0, false
	}
	var y int
	if _, err := fmt.Sscanf(year, "%d", &y); err != nil {
		return 0, false
	}
	for i, a := range monthAbbrev {
		if strings.EqualFold(a, abbr) {
			return y*100 + i + 1, true
		}
	}
	return 0, false
}

// EndOfMonth returns the last calendar day of t's month.
func EndOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// HeaderDate renders t in Brasilia time as "Segunda-feira, 05 de janeiro de 2025".
func HeaderDate(t time.Time) string {
	t = t.In(Brasilia)
	return fmt.Sprintf("%s, %02d de %s de %d", weekdayNames[t.Weekday()], t.Day(), monthNames[t.Month()-1], t.Year())
}

// Now returns the current instant from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Today returns the current calendar day in Brasilia.
func Today() time.Time {
	return Day(clock.Now().In(Brasilia))
}
