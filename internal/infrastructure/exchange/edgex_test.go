package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/edgex_trade_bot/internal/domain"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *EdgeXAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a := NewEdgeXAdapter(EdgeXConfig{
		APIKey:     "key",
		APISecret:  "secret",
		PublicURL:  srv.URL + "/api/v1/public",
		PrivateURL: srv.URL + "/api/v1/private",
	}, nil)
	a.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return a
}

func writeEnvelope(w http.ResponseWriter, code string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "data": data, "msg": "bad things"})
}

func TestContractID(t *testing.T) {
	id, err := ContractID("btc")
	require.NoError(t, err)
	assert.Equal(t, "10000001", id)

	id, err = ContractID("LINK")
	require.NoError(t, err)
	assert.Equal(t, "10000010", id)

	_, err = ContractID("PEPE")
	assert.ErrorIs(t, err, domain.ErrUnsupportedSymbol)
}

func TestGetCurrentPrice(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/quote/getTicker", r.URL.Path)
		assert.Equal(t, "10000002", r.URL.Query().Get("contractId"))
		writeEnvelope(w, "SUCCESS", []map[string]string{{"contractId": "10000002", "lastPrice": "3012.5"}})
	})

	price, err := a.GetCurrentPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.InDelta(t, 3012.5, price, 1e-9)
}

func TestGetCurrentPriceEmptyTicker(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "SUCCESS", []interface{}{})
	})
	_, err := a.GetCurrentPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestExchangeErrorCodeIsTransportError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "INVALID_SIGNATURE", nil)
	})
	_, err := a.GetAccountInfo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "INVALID_SIGNATURE")
}

func TestHTTPErrorIsTransportError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	_, err := a.GetOpenOrders(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestPrivateRequestsAreSigned(t *testing.T) {
	var gotBody string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "1700000000000", r.Header.Get("X-TIMESTAMP"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write([]byte("1700000000000" + "POST" + "/order" + gotBody))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-SIGNATURE"))

		writeEnvelope(w, "SUCCESS", map[string]string{"orderId": "778899"})
	})

	ref, err := a.PlaceOrder(context.Background(), &domain.OrderRequest{
		Symbol: "btc", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Amount: 0.001, Price: 49500, ClientID: "cid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "778899", ref.ID)
	assert.Equal(t, "BTC", ref.Symbol)
	assert.InDelta(t, 49500, ref.Price, 1e-9)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotBody), &payload))
	assert.Equal(t, "BTCUSD", payload["contractName"])
	assert.Equal(t, "BUY", payload["side"])
	assert.Equal(t, "LIMIT", payload["type"])
	assert.Equal(t, "0.001", payload["amount"])
	assert.Equal(t, "49500", payload["price"])
	assert.Equal(t, "cid-1", payload["clientOrderId"])
}

func TestMarketOrderOmitsPrice(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasPrice := payload["price"]
		assert.False(t, hasPrice)
		assert.NotEmpty(t, payload["clientOrderId"])
		writeEnvelope(w, "SUCCESS", map[string]string{"id": "1"})
	})

	ref, err := a.PlaceOrder(context.Background(), &domain.OrderRequest{
		Symbol: "SOL", Side: domain.SideSell, Type: domain.OrderTypeMarket, Amount: 2,
	})
	require.NoError(t, err)
	assert.False(t, ref.HasPrice())
}

func TestPlaceOrderUnsupportedSymbolMakesNoCall(t *testing.T) {
	called := false
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := a.PlaceOrder(context.Background(), &domain.OrderRequest{
		Symbol: "PEPE", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Amount: 1,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSymbol)
	assert.False(t, called)
}

func TestGetPosition(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/private/position/BTC":
			writeEnvelope(w, "SUCCESS", map[string]string{
				"size": "-0.5", "avgPrice": "50000", "unrealizedPnl": "-1500", "notional": "25000",
			})
		default:
			writeEnvelope(w, "SUCCESS", nil)
		}
	})

	pos, err := a.GetPosition(context.Background(), "BTC")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, -0.5, pos.Size, 1e-12)
	assert.Equal(t, domain.SideBuy, pos.CloseSide())
	pct, ok := pos.PnLPercent()
	assert.True(t, ok)
	assert.InDelta(t, -6.0, pct, 1e-9)

	flat, err := a.GetPosition(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Nil(t, flat)
}

func TestGetOpenOrdersAndCancel(t *testing.T) {
	var cancelled string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/private/orders":
			assert.Equal(t, "BTC", r.URL.Query().Get("symbol"))
			writeEnvelope(w, "SUCCESS", []map[string]interface{}{
				{"id": "a1", "symbol": "BTCUSD", "side": "buy", "type": "limit", "price": "49000", "amount": "0.001", "createdTime": "1700000000000"},
				{"id": "a2", "symbol": "BTCUSD", "side": "SELL", "type": "LIMIT", "price": 51000, "amount": 0.001},
			})
		case r.Method == http.MethodDelete:
			cancelled = r.URL.Path
			writeEnvelope(w, "SUCCESS", nil)
		}
	})

	orders, err := a.GetOpenOrders(context.Background(), "btc")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "BTC", orders[0].Symbol)
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.OrderTypeLimit, orders[0].Type)
	assert.InDelta(t, 51000, orders[1].Price, 1e-9)

	require.NoError(t, a.CancelOrder(context.Background(), "a1"))
	assert.Equal(t, "/api/v1/private/order/a1", cancelled)
}

func TestGetAccountInfo(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/private/account", r.URL.Path)
		writeEnvelope(w, "SUCCESS", map[string]string{
			"totalBalance": "1000.5", "availableBalance": "800", "marginBalance": "990",
		})
	})
	acct, err := a.GetAccountInfo(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1000.5, acct.TotalBalance, 1e-9)
	assert.InDelta(t, 800, acct.AvailableBalance, 1e-9)
}

func TestGetCandlesOldestFirst(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MINUTE_15", r.URL.Query().Get("klineType"))
		writeEnvelope(w, "SUCCESS", map[string]interface{}{
			"dataList": []map[string]string{
				{"klineTime": "1700000900000", "open": "2", "high": "3", "low": "1", "close": "2.5", "size": "10"},
				{"klineTime": "1700000000000", "open": "1", "high": "2", "low": "1", "close": "2", "size": "5"},
			},
		})
	})

	candles, err := a.GetCandles(context.Background(), "BTC", "15m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.InDelta(t, 2.5, candles[1].Close, 1e-9)

	_, err = a.GetCandles(context.Background(), "BTC", "7m", 2)
	assert.Error(t, err)
}
