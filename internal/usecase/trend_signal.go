package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/vitos/edgex_trade_bot/internal/domain"
)

// EMACrossoverProvider derives the trend from a fast/slow EMA pair computed on
// closed candles: fast above slow is UP, below is DOWN.
type EMACrossoverProvider struct {
	candles    domain.CandleSource
	interval   string
	fastPeriod int
	slowPeriod int
	limit      int
}

func NewEMACrossoverProvider(candles domain.CandleSource, interval string, fastPeriod, slowPeriod, limit int) *EMACrossoverProvider {
	if fastPeriod <= 0 {
		fastPeriod = 20
	}
	if slowPeriod <= fastPeriod {
		slowPeriod = fastPeriod * 5 / 2
	}
	if limit < slowPeriod+1 {
		limit = slowPeriod * 2
	}
	if interval == "" {
		interval = "15m"
	}
	return &EMACrossoverProvider{
		candles:    candles,
		interval:   interval,
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		limit:      limit,
	}
}

func (p *EMACrossoverProvider) Signal(ctx context.Context, symbol string) (domain.TrendSignal, error) {
	candles, err := p.candles.GetCandles(ctx, symbol, p.interval, p.limit)
	if err != nil {
		return domain.TrendFlat, fmt.Errorf("fetch candles: %w", err)
	}
	return emaCrossover(candles, p.fastPeriod, p.slowPeriod), nil
}

func emaCrossover(candles []domain.Candle, fastPeriod, slowPeriod int) domain.TrendSignal {
	if len(candles) < slowPeriod {
		return domain.TrendFlat
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := talib.Ema(closes, fastPeriod)
	slow := talib.Ema(closes, slowPeriod)
	f, s := fast[len(fast)-1], slow[len(slow)-1]
	switch {
	case f > s:
		return domain.TrendUp
	case f < s:
		return domain.TrendDown
	default:
		return domain.TrendFlat
	}
}

// CoinFlipProvider is a placeholder signal: UP or DOWN with equal odds. It has
// no predictive value and is only selected when configured explicitly.
type CoinFlipProvider struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCoinFlipProvider(seed int64) *CoinFlipProvider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CoinFlipProvider{rnd: rand.New(rand.NewSource(seed))}
}

func (p *CoinFlipProvider) Signal(ctx context.Context, symbol string) (domain.TrendSignal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rnd.Float64() > 0.5 {
		return domain.TrendUp, nil
	}
	return domain.TrendDown, nil
}
