package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit    = 60
	defaultIndicatorsLimit = 100
)

// limitParam reads ?limit, writing a 400 and returning false when it is not
// a positive integer.
func (h *Handlers) limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

// History handles GET /history/{symbol}?limit=60.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	limit, ok := h.limitParam(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	points, err := h.deps.Analytics.History(r.Context(), symbol, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HistoryResponse{Symbol: symbol, History: points})
}

// Risk handles GET /risk/{symbol}.
func (h *Handlers) Risk(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	m, err := h.deps.Analytics.Risk(r.Context(), symbol)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// Indicators handles GET /indicators/{symbol}?limit=100.
func (h *Handlers) Indicators(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	limit, ok := h.limitParam(w, r, defaultIndicatorsLimit)
	if !ok {
		return
	}

	points, err := h.deps.Analytics.Indicators(r.Context(), symbol, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, IndicatorsResponse{Symbol: symbol, Indicators: points})
}
