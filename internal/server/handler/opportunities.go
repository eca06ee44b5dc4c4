package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"arbmon/internal/domain"
)

// OpportunityHandler serves opportunity history and the live top
// opportunity per pair.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	cache  domain.QuoteCache
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. cache may be nil
// when Redis is disabled; the live endpoints then return 503.
func NewOpportunityHandler(store domain.OpportunityStore, cache domain.QuoteCache, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, cache: cache, logger: logger}
}

// ListRecent returns recent opportunities filtered by coin, fiat, hours,
// and limit.
// GET /api/opportunities/recent?coin=BTC&fiat=ARS&hours=24&limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	filter := parseOpportunityFilter(r)
	opps, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(opps),
		"opportunities": opps,
	})
}

// Top returns the best opportunity from the latest poll cycle for a pair.
// GET /api/opportunities/top?coin=BTC&fiat=ARS
func (h *OpportunityHandler) Top(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}

	pair, ok := parsePair(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "coin and fiat query parameters are required")
		return
	}

	opp, err := h.cache.GetTopOpportunity(r.Context(), pair)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no current opportunity for pair")
		return
	}
	if err != nil {
		h.logger.Error("get top opportunity failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	writeJSON(w, http.StatusOK, opp)
}

// Quotes returns the latest cached quotes for a pair, or a single
// exchange's quote when the exchange parameter is given.
// GET /api/quotes?coin=BTC&fiat=ARS[&exchange=lemon]
func (h *OpportunityHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}

	pair, ok := parsePair(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "coin and fiat query parameters are required")
		return
	}

	if exchange := strings.ToLower(r.URL.Query().Get("exchange")); exchange != "" {
		quote, err := h.cache.GetQuote(r.Context(), pair, exchange)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cached quote for exchange")
			return
		}
		if err != nil {
			h.logger.Error("get quote failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to read cache")
			return
		}
		writeJSON(w, http.StatusOK, quote)
		return
	}

	quotes, err := h.cache.GetQuotes(r.Context(), pair)
	if err != nil {
		h.logger.Error("get quotes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pair":   pair.String(),
		"count":  len(quotes),
		"quotes": quotes,
	})
}
