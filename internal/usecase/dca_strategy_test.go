package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/edgex_trade_bot/internal/domain"
)

func TestDCALevels(t *testing.T) {
	levels := DCALevels("ETH", 3000, 2, 0.1, 3500)
	require.Len(t, levels, 5)
	wantPrices := []float64{2940, 2880, 2820, 2760, 2700}
	wantAmounts := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	for i, l := range levels {
		assert.InDelta(t, wantPrices[i], l.Price, 1e-9)
		assert.InDelta(t, wantAmounts[i], l.Amount, 1e-12)
		assert.Equal(t, domain.SideBuy, l.Side)
		assert.Equal(t, domain.OrderTypeLimit, l.Type)
	}

	// only levels strictly below market are eligible
	levels = DCALevels("ETH", 3000, 2, 0.1, 2880)
	require.Len(t, levels, 3)
	assert.InDelta(t, 2820, levels[0].Price, 1e-9)
	assert.InDelta(t, 0.3, levels[0].Amount, 1e-12)

	assert.Empty(t, DCALevels("ETH", 3000, 2, 0.1, 2000))
}

func TestEstablishDCA(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)

	res, err := e.EstablishDCA(context.Background(), "ETH", 3000, 2, 0.1)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEstablished, res.Outcome)
	assert.Equal(t, 5, res.Placed())

	rec, ok := e.Registry().Get(domain.StrategyKey{Symbol: "ETH", Kind: domain.KindDCA})
	require.True(t, ok)
	assert.Len(t, rec.Orders, 5)
	assert.InDelta(t, 2, rec.Params.StepPercent, 1e-12)
}

func TestEstablishDCANoEligibleLevels(t *testing.T) {
	ex := newMockExchange()
	ex.prices["ETH"] = 2000
	e := newTestEngine(ex)

	res, err := e.EstablishDCA(context.Background(), "ETH", 3000, 2, 0.1)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoOp, res.Outcome)
	assert.Nil(t, res.Record)
	assert.Empty(t, ex.placedRequests())
	assert.Zero(t, e.Registry().Len())
}

func TestEstablishDCAPriceUnavailable(t *testing.T) {
	ex := newMockExchange()
	ex.priceErr = errExchangeDown
	e := newTestEngine(ex)

	_, err := e.EstablishDCA(context.Background(), "ETH", 3000, 2, 0.1)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	assert.ErrorIs(t, err, errExchangeDown)
	assert.Empty(t, ex.placedRequests())
}

func TestEstablishDCAPartialWhenLargestLevelTooBig(t *testing.T) {
	ex := newMockExchange()
	e := newTestEngine(ex)

	// amounts 2.5, 5, 7.5, 10, 12.5 against a cap of 10
	res, err := e.EstablishDCA(context.Background(), "ETH", 3000, 1, 2.5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePartial, res.Outcome)
	assert.Equal(t, 4, res.Placed())
	assert.ErrorIs(t, res.Err(), domain.ErrSizeLimit)
	assert.Len(t, ex.placedRequests(), 4)
}

func TestEstablishDCARejectsInvalidParams(t *testing.T) {
	e := newTestEngine(newMockExchange())
	ctx := context.Background()

	_, err := e.EstablishDCA(ctx, "ETH", 3000, 20, 0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
	_, err = e.EstablishDCA(ctx, "ETH", 0, 2, 0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
	_, err = e.EstablishDCA(ctx, "ETH", 3000, 2, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}
