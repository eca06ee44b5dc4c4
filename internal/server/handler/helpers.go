package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arbmon/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseOpportunityFilter extracts query parameters for opportunity listing.
// Defaults: last 24 hours, limit 50 (max 500).
func parseOpportunityFilter(r *http.Request) domain.OpportunityFilter {
	q := r.URL.Query()

	filter := domain.OpportunityFilter{
		Coin: strings.ToUpper(strings.TrimSpace(q.Get("coin"))),
		Fiat: strings.ToUpper(strings.TrimSpace(q.Get("fiat"))),
	}

	hours := 24
	if v := q.Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	filter.Since = &since

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	filter.Limit = limit

	return filter
}

// parsePair extracts coin and fiat query parameters, reporting whether both
// are present.
func parsePair(r *http.Request) (domain.Pair, bool) {
	q := r.URL.Query()
	pair := domain.Pair{
		Coin: strings.ToUpper(strings.TrimSpace(q.Get("coin"))),
		Fiat: strings.ToUpper(strings.TrimSpace(q.Get("fiat"))),
	}
	return pair, pair.Coin != "" && pair.Fiat != ""
}
