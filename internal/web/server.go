package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"github.com/vitos/edgex_trade_bot/internal/usecase"
	"go.uber.org/zap"
)

// StatusSource is the read-only part of the engine the HTTP API exposes.
type StatusSource interface {
	Status() []*domain.StrategyRecord
	Position(ctx context.Context, symbol string) (*usecase.PositionView, error)
	OpenOrders(ctx context.Context) ([]domain.OrderReference, error)
	Balance(ctx context.Context) (*domain.AccountSnapshot, error)
}

// Server serves a read-only JSON view of the bot. Trading commands are only
// accepted on the console.
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	engine  StatusSource
	journal domain.OrderJournal
	logger  *zap.Logger
}

func NewServer(port int, engine StatusSource, journal domain.OrderJournal, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  http.NewServeMux(),
		engine:  engine,
		journal: journal,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/positions/{symbol}", s.handlePosition)
	s.router.HandleFunc("GET /api/orders", s.handleOrders)
	s.router.HandleFunc("GET /api/balance", s.handleBalance)
	s.router.HandleFunc("GET /api/journal", s.handleJournal)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting status server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
