package handlers

import (
	"net/http"

	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/signal"
)

// TradeSignal handles POST /trade-signal.
func (h *Handlers) TradeSignal(w http.ResponseWriter, r *http.Request) {
	req := signal.Request{Horizon: 1}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Symbol == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "symbol is required")
		return
	}

	resp, err := h.deps.Signals.Signal(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PaperTrade handles POST /paper-trade.
func (h *Handlers) PaperTrade(w http.ResponseWriter, r *http.Request) {
	req := papertrade.Request{Days: 5}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Symbol == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "symbol is required")
		return
	}

	res, err := h.deps.Paper.Run(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
