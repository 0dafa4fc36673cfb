package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

const defaultJournalLimit = 100

type positionView struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	Open          bool     `json:"open"`
	Size          float64  `json:"size"`
	EntryPrice    float64  `json:"entry_price"`
	UnrealizedPnL float64  `json:"unrealized_pnl"`
	PnLPercent    *float64 `json:"pnl_percent,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrInvalidParams), errors.Is(err, domain.ErrUnsupportedSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrEngineStopped):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Position(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.logger.Warn("Position query failed", zap.String("symbol", r.PathValue("symbol")), zap.Error(err))
		s.writeError(w, err)
		return
	}
	out := positionView{Symbol: view.Symbol, Price: view.Price}
	if p := view.Position; p.IsOpen() {
		out.Open = true
		out.Size = p.Size
		out.EntryPrice = p.EntryPrice
		out.UnrealizedPnL = p.UnrealizedPnL
		if pct, ok := p.PnLPercent(); ok {
			out.PnLPercent = &pct
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.engine.OpenOrders(r.Context())
	if err != nil {
		s.logger.Warn("Open orders query failed", zap.Error(err))
		s.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderReference{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := s.engine.Balance(r.Context())
	if err != nil {
		s.logger.Warn("Balance query failed", zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{
		"total":     acc.TotalBalance,
		"available": acc.AvailableBalance,
		"margin":    acc.MarginBalance,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.journal.ListEntries(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list journal", zap.Error(err))
		http.Error(w, "Failed to list journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*domain.JournalEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
