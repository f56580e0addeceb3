package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pauloqxm/portal-comite/internal/domain/ptbr"
)

// queryList collects repeated parameters, dropping blanks. Multi-select
// filters arrive as reservatorio=A&reservatorio=B.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// queryDate parses an optional YYYY-MM-DD or dd/mm/yyyy parameter.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	d, ok := ptbr.ParseDate(raw)
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, key, raw)
	}
	return &d, nil
}

// queryRange reads the inicio/fim pair and rejects inverted intervals.
func queryRange(r *http.Request) (start, end *time.Time, err error) {
	if start, err = queryDate(r, "inicio"); err != nil {
		return nil, nil, err
	}
	if end, err = queryDate(r, "fim"); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("%w: fim before inicio", ErrBadRequest)
	}
	return start, end, nil
}

// queryFloat parses an optional number, accepting a decimal comma.
func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, key, raw)
	}
	return &v, nil
}
