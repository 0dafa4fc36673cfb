package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMonitorInterval   = 5 * time.Minute
	DefaultEmergencyStopLoss = 5.0
)

type MonitorConfig struct {
	Interval time.Duration
	// EmergencyStopLossPct is the loss, in percent of notional, at which a
	// symbol is unwound. 5 means -5%.
	EmergencyStopLossPct float64
}

// Breach is a symbol whose loss crossed the emergency threshold during a tick.
type Breach struct {
	Symbol     string
	PnLPercent float64
	Unwind     *UnwindResult
	Err        error
}

type TickReport struct {
	Skipped  bool
	Checked  []string
	Breaches []Breach
	// Errors holds the symbols whose position could not be read.
	Errors map[string]error
}

// PositionMonitor periodically checks the live position of every symbol with
// an active strategy and unwinds the symbol when unrealized loss reaches the
// emergency threshold. It is the only automatic unwind trigger.
type PositionMonitor struct {
	engine *Engine
	logger *zap.Logger
	cfg    MonitorConfig

	running  atomic.Bool
	stopped  atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	tickMu   sync.Mutex
}

func NewPositionMonitor(engine *Engine, logger *zap.Logger, cfg MonitorConfig) *PositionMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorInterval
	}
	if cfg.EmergencyStopLossPct <= 0 {
		cfg.EmergencyStopLossPct = DefaultEmergencyStopLoss
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionMonitor{
		engine:   engine,
		logger:   logger,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start runs Tick every interval until Stop is called or ctx is done.
func (m *PositionMonitor) Start(ctx context.Context) {
	if m.stopped.Load() || !m.running.CompareAndSwap(false, true) {
		return
	}
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *PositionMonitor) run(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("Position monitor started",
		zap.Duration("interval", m.cfg.Interval),
		zap.Float64("emergency_stop_loss_pct", m.cfg.EmergencyStopLossPct))

	for {
		select {
		case <-ticker.C:
			m.Tick(ctx)
		case <-m.stopChan:
			m.logger.Info("Position monitor stopped")
			return
		case <-ctx.Done():
			m.logger.Info("Position monitor cancelled")
			return
		}
	}
}

// Stop prevents new ticks and waits for a tick in progress to finish.
func (m *PositionMonitor) Stop() {
	if m.stopped.Swap(true) {
		m.wg.Wait()
		return
	}
	close(m.stopChan)
	m.wg.Wait()
}

func (m *PositionMonitor) halted() bool {
	return m.stopped.Load() || m.engine.Stopped()
}

// Tick performs one scan. It does nothing once the monitor or the engine has
// been stopped. A failure on one symbol never prevents checking the others.
func (m *PositionMonitor) Tick(ctx context.Context) *TickReport {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	ctx = operationContext(ctx)

	report := &TickReport{Errors: make(map[string]error)}
	if m.halted() {
		report.Skipped = true
		return report
	}

	symbols := m.engine.Registry().Symbols()
	m.logger.Debug("Monitoring positions", zap.Strings("symbols", symbols))

	for _, symbol := range symbols {
		if m.halted() {
			break
		}
		report.Checked = append(report.Checked, symbol)

		pos, err := m.engine.position(ctx, symbol)
		if err != nil {
			report.Errors[symbol] = err
			m.logger.Warn("Monitor failed to read position", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		pnlPct, ok := pos.PnLPercent()
		if !ok || pnlPct > -m.cfg.EmergencyStopLossPct {
			continue
		}

		m.logger.Error("Emergency stop-loss triggered",
			zap.String("symbol", symbol),
			zap.Float64("pnl_pct", pnlPct),
			zap.Float64("threshold_pct", -m.cfg.EmergencyStopLossPct))
		m.engine.metrics.Inc("monitor.breach")

		res, err := m.engine.Unwind(ctx, symbol)
		report.Breaches = append(report.Breaches, Breach{Symbol: symbol, PnLPercent: pnlPct, Unwind: res, Err: err})
		if err != nil {
			m.logger.Error("Emergency unwind failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return report
}
