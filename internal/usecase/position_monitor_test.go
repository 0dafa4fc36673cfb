package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

func newTestMonitor(e *Engine) *PositionMonitor {
	return NewPositionMonitor(e, zap.NewNop(), MonitorConfig{Interval: time.Hour, EmergencyStopLossPct: 5})
}

func TestMonitorBreachUnwindsSymbol(t *testing.T) {
	ex := newMockExchange()
	metrics := &recordingMetrics{}
	e := newTestEngine(ex, WithMetrics(metrics))
	ctx := context.Background()

	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)
	ex.setPosition("BTC", 0.2, -600, 10000)

	m := newTestMonitor(e)
	report := m.Tick(ctx)
	require.Len(t, report.Breaches, 1)
	b := report.Breaches[0]
	assert.Equal(t, "BTC", b.Symbol)
	assert.InDelta(t, -6, b.PnLPercent, 1e-9)
	require.NoError(t, b.Err)
	assert.Equal(t, domain.OutcomeCompleted, b.Unwind.Outcome)

	assert.Zero(t, e.Registry().Len())
	assert.Zero(t, ex.openCount("BTC"))
	assert.Equal(t, 1, metrics.count("monitor.breach"))

	// next tick has nothing to watch
	report = m.Tick(ctx)
	assert.Empty(t, report.Checked)
}

func TestMonitorEmergencyUnwindSurvivesCancellation(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)

	_, err := e.EstablishGrid(context.Background(), "BTC", 50000, 500, 0.001)
	require.NoError(t, err)
	ex.setPosition("BTC", 0.2, -600, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex.cancelErr = func(string) error {
		cancel()
		return nil
	}

	report := newTestMonitor(e).Tick(ctx)
	require.Len(t, report.Breaches, 1)
	assert.Equal(t, domain.OutcomeCompleted, report.Breaches[0].Unwind.Outcome)
	assert.Zero(t, ex.openCount("BTC"))
	pos, _ := ex.GetPosition(context.Background(), "BTC")
	assert.Nil(t, pos)
}

func TestMonitorThresholdIsInclusive(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()
	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)

	ex.setPosition("BTC", 0.2, -490, 10000)
	report := newTestMonitor(e).Tick(ctx)
	assert.Equal(t, []string{"BTC"}, report.Checked)
	assert.Empty(t, report.Breaches)
	// a tick without breach has no side effects
	assert.Len(t, ex.placedRequests(), 10)
	assert.Empty(t, ex.cancelledIDs())

	ex.setPosition("BTC", 0.2, -500, 10000)
	report = newTestMonitor(e).Tick(ctx)
	assert.Len(t, report.Breaches, 1)
}

func TestMonitorUnwindsOncePerSymbol(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()

	_, err := e.EstablishGrid(ctx, "ETH", 3000, 10, 0.1)
	require.NoError(t, err)
	_, err = e.EstablishDCA(ctx, "ETH", 3000, 2, 0.1)
	require.NoError(t, err)
	ex.setPosition("ETH", 1, -300, 3000)
	before := len(ex.placedRequests())

	report := newTestMonitor(e).Tick(ctx)
	require.Len(t, report.Breaches, 1)
	assert.ElementsMatch(t, []domain.StrategyKind{domain.KindGrid, domain.KindDCA}, report.Breaches[0].Unwind.Removed)
	// exactly one closing order
	assert.Len(t, ex.placedRequests(), before+1)
}

func TestMonitorIsolatesSymbolFailures(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()

	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)
	_, err = e.EstablishGrid(ctx, "ETH", 3000, 10, 0.1)
	require.NoError(t, err)
	ex.positionErrs["BTC"] = errExchangeDown
	ex.setPosition("ETH", 1, -300, 3000)

	report := newTestMonitor(e).Tick(ctx)
	assert.Equal(t, []string{"BTC", "ETH"}, report.Checked)
	assert.ErrorIs(t, report.Errors["BTC"], errExchangeDown)
	require.Len(t, report.Breaches, 1)
	assert.Equal(t, "ETH", report.Breaches[0].Symbol)
	assert.Equal(t, []string{"BTC"}, e.Registry().Symbols())
}

func TestMonitorIgnoresMissingPnL(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()
	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)

	ex.setPosition("BTC", 0.2, -600, 0)
	assert.Empty(t, newTestMonitor(e).Tick(ctx).Breaches)

	ex.setPosition("BTC", 0.2, 0, 10000)
	assert.Empty(t, newTestMonitor(e).Tick(ctx).Breaches)
	assert.Equal(t, 1, e.Registry().Len())
}

func TestMonitorSkipsWhenStopped(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()
	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)
	ex.setPosition("BTC", 0.2, -600, 10000)

	m := newTestMonitor(e)
	m.Stop()
	assert.True(t, m.Tick(ctx).Skipped)

	m2 := newTestMonitor(e)
	e.Stop()
	report := m2.Tick(ctx)
	assert.True(t, report.Skipped)
	assert.Equal(t, 1, e.Registry().Len())
}

func TestMonitorLoopRunsUntilStopped(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)
	ctx := context.Background()
	_, err := e.EstablishGrid(ctx, "BTC", 50000, 500, 0.001)
	require.NoError(t, err)
	ex.setPosition("BTC", 0.2, -600, 10000)

	m := NewPositionMonitor(e, zap.NewNop(), MonitorConfig{Interval: 10 * time.Millisecond, EmergencyStopLossPct: 5})
	m.Start(ctx)
	require.Eventually(t, func() bool { return e.Registry().Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
	assert.True(t, m.Tick(ctx).Skipped)
}
