package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	EdgeXPublicURL  = "https://pro.edgex.exchange/api/v1/public"
	EdgeXPrivateURL = "https://pro.edgex.exchange/api/v1/private"
	EdgeXWSURL      = "wss://quote.edgex.exchange/api/v1/public/ws"

	codeSuccess = "SUCCESS"
)

// contractIDs maps supported symbols to EdgeX perpetual contract ids.
var contractIDs = map[string]string{
	"BTC":  "10000001",
	"ETH":  "10000002",
	"SOL":  "10000003",
	"DOGE": "10000004",
	"XRP":  "10000005",
	"ADA":  "10000006",
	"AVAX": "10000007",
	"SHIB": "10000008",
	"DOT":  "10000009",
	"LINK": "10000010",
}

// SupportedSymbols lists the tradable symbols in alphabetical order.
func SupportedSymbols() []string {
	symbols := make([]string, 0, len(contractIDs))
	for s := range contractIDs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ContractID returns the EdgeX contract id of symbol.
func ContractID(symbol string) (string, error) {
	id, ok := contractIDs[strings.ToUpper(symbol)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, symbol)
	}
	return id, nil
}

type EdgeXConfig struct {
	APIKey     string
	APISecret  string
	PublicURL  string
	PrivateURL string
	Timeout    time.Duration
}

// EdgeXAdapter implements domain.Exchange and domain.CandleSource against the
// EdgeX REST API. Every failure is wrapped in domain.ErrTransport.
type EdgeXAdapter struct {
	apiKey     string
	apiSecret  string
	publicURL  string
	privateURL string
	client     *http.Client
	stream     *PriceStream
	logger     *zap.Logger
	now        func() time.Time
}

func NewEdgeXAdapter(cfg EdgeXConfig, logger *zap.Logger) *EdgeXAdapter {
	if cfg.PublicURL == "" {
		cfg.PublicURL = EdgeXPublicURL
	}
	if cfg.PrivateURL == "" {
		cfg.PrivateURL = EdgeXPrivateURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeXAdapter{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		privateURL: strings.TrimRight(cfg.PrivateURL, "/"),
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// AttachStream makes GetCurrentPrice prefer fresh prices from the websocket feed.
func (a *EdgeXAdapter) AttachStream(s *PriceStream) {
	a.stream = s
}

// --- REST API ---

// sign returns hex(HMAC-SHA256(secret, timestamp + method + endpoint + body)).
func (a *EdgeXAdapter) sign(timestamp, method, endpoint, body string) string {
	h := hmac.New(sha256.New, []byte(a.apiSecret))
	h.Write([]byte(timestamp + method + endpoint + body))
	return hex.EncodeToString(h.Sum(nil))
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *EdgeXAdapter) do(req *http.Request) (json.RawMessage, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: http %d: %s", domain.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", domain.ErrTransport, err)
	}
	if env.Code != codeSuccess {
		return nil, fmt.Errorf("%w: edgex error %s: %s", domain.ErrTransport, env.Code, env.Msg)
	}
	return env.Data, nil
}

func (a *EdgeXAdapter) callPublic(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.publicURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	return a.do(req)
}

func (a *EdgeXAdapter) callPrivate(ctx context.Context, method, endpoint string, payload interface{}) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode: %w", domain.ErrTransport, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.privateURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	timestamp := strconv.FormatInt(a.now().UnixMilli(), 10)
	req.Header.Set("X-API-KEY", a.apiKey)
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-SIGNATURE", a.sign(timestamp, method, endpoint, string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "edgex-trade-bot/1.0")

	return a.do(req)
}

func (a *EdgeXAdapter) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if a.stream != nil {
		if price, ok := a.stream.LastPrice(symbol); ok {
			return price, nil
		}
	}

	contractID, err := ContractID(symbol)
	if err != nil {
		return 0, err
	}
	data, err := a.callPublic(ctx, "/quote/getTicker?contractId="+contractID)
	if err != nil {
		return 0, err
	}

	var tickers []struct {
		ContractID string          `json:"contractId"`
		LastPrice  decimal.Decimal `json:"lastPrice"`
	}
	if err := json.Unmarshal(data, &tickers); err != nil {
		return 0, fmt.Errorf("%w: decode ticker: %w", domain.ErrTransport, err)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("%w: no ticker for %s", domain.ErrTransport, symbol)
	}
	return tickers[0].LastPrice.InexactFloat64(), nil
}

func (a *EdgeXAdapter) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	data, err := a.callPrivate(ctx, http.MethodGet, "/position/"+url.PathEscape(strings.ToUpper(symbol)), nil)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	var raw struct {
		Size          decimal.Decimal `json:"size"`
		AvgPrice      decimal.Decimal `json:"avgPrice"`
		UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
		Notional      decimal.Decimal `json:"notional"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode position: %w", domain.ErrTransport, err)
	}
	return &domain.Position{
		Symbol:        strings.ToUpper(symbol),
		Size:          raw.Size.InexactFloat64(),
		EntryPrice:    raw.AvgPrice.InexactFloat64(),
		UnrealizedPnL: raw.UnrealizedPnl.InexactFloat64(),
		Notional:      raw.Notional.InexactFloat64(),
	}, nil
}

type orderPayload struct {
	ContractName  string `json:"contractName"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Price         string `json:"price,omitempty"`
	Leverage      string `json:"leverage,omitempty"`
	ClientOrderID string `json:"clientOrderId"`
}

func (a *EdgeXAdapter) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReference, error) {
	symbol := strings.ToUpper(req.Symbol)
	if _, err := ContractID(symbol); err != nil {
		return nil, err
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	payload := orderPayload{
		ContractName:  symbol + "USD",
		Side:          string(req.Side),
		Type:          string(req.Type),
		Amount:        decimal.NewFromFloat(req.Amount).String(),
		ClientOrderID: clientID,
	}
	if req.Type == domain.OrderTypeLimit {
		payload.Price = decimal.NewFromFloat(req.Price).String()
	}
	if req.Leverage > 0 {
		payload.Leverage = strconv.Itoa(req.Leverage)
	}

	data, err := a.callPrivate(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID      string `json:"id"`
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode order: %w", domain.ErrTransport, err)
	}
	id := resp.OrderID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: order response without id", domain.ErrTransport)
	}

	ref := &domain.OrderReference{
		ID:        id,
		Symbol:    symbol,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		CreatedAt: a.now(),
	}
	if req.Type == domain.OrderTypeLimit {
		ref.Price = req.Price
	}
	a.logger.Debug("EdgeX order created",
		zap.String("order_id", id),
		zap.String("client_order_id", clientID),
		zap.String("contract", payload.ContractName))
	return ref, nil
}

func (a *EdgeXAdapter) CancelOrder(ctx context.Context, orderID string) error {
	_, err := a.callPrivate(ctx, http.MethodDelete, "/order/"+url.PathEscape(orderID), nil)
	return err
}

func (a *EdgeXAdapter) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderReference, error) {
	endpoint := "/orders"
	if symbol != "" {
		endpoint += "?symbol=" + url.QueryEscape(strings.ToUpper(symbol))
	}
	data, err := a.callPrivate(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	var raw []struct {
		ID        string          `json:"id"`
		Symbol    string          `json:"symbol"`
		Side      string          `json:"side"`
		Type      string          `json:"type"`
		Price     decimal.Decimal `json:"price"`
		Amount    decimal.Decimal `json:"amount"`
		CreatedAt decimal.Decimal `json:"createdTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode orders: %w", domain.ErrTransport, err)
	}

	orders := make([]domain.OrderReference, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, domain.OrderReference{
			ID:        o.ID,
			Symbol:    strings.TrimSuffix(strings.ToUpper(o.Symbol), "USD"),
			Side:      domain.OrderSide(strings.ToUpper(o.Side)),
			Type:      domain.OrderType(strings.ToUpper(o.Type)),
			Price:     o.Price.InexactFloat64(),
			Amount:    o.Amount.InexactFloat64(),
			CreatedAt: time.UnixMilli(o.CreatedAt.IntPart()),
		})
	}
	return orders, nil
}

func (a *EdgeXAdapter) GetAccountInfo(ctx context.Context) (*domain.AccountSnapshot, error) {
	data, err := a.callPrivate(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return nil, err
	}
	var raw struct {
		TotalBalance     decimal.Decimal `json:"totalBalance"`
		AvailableBalance decimal.Decimal `json:"availableBalance"`
		MarginBalance    decimal.Decimal `json:"marginBalance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode account: %w", domain.ErrTransport, err)
	}
	return &domain.AccountSnapshot{
		TotalBalance:     raw.TotalBalance.InexactFloat64(),
		AvailableBalance: raw.AvailableBalance.InexactFloat64(),
		MarginBalance:    raw.MarginBalance.InexactFloat64(),
	}, nil
}

var klineTypes = map[string]string{
	"1m":  "MINUTE_1",
	"5m":  "MINUTE_5",
	"15m": "MINUTE_15",
	"30m": "MINUTE_30",
	"1h":  "HOUR_1",
	"4h":  "HOUR_4",
	"1d":  "DAY_1",
}

// GetCandles returns klines oldest first.
func (a *EdgeXAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	contractID, err := ContractID(symbol)
	if err != nil {
		return nil, err
	}
	klineType, ok := klineTypes[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported kline interval %q", interval)
	}

	endpoint := fmt.Sprintf("/quote/getKline?contractId=%s&klineType=%s&priceType=LAST_PRICE&size=%d", contractID, klineType, limit)
	data, err := a.callPublic(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var page struct {
		DataList []struct {
			KlineTime decimal.Decimal `json:"klineTime"`
			Open      decimal.Decimal `json:"open"`
			High      decimal.Decimal `json:"high"`
			Low       decimal.Decimal `json:"low"`
			Close     decimal.Decimal `json:"close"`
			Size      decimal.Decimal `json:"size"`
		} `json:"dataList"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("%w: decode klines: %w", domain.ErrTransport, err)
	}

	candles := make([]domain.Candle, 0, len(page.DataList))
	for _, k := range page.DataList {
		candles = append(candles, domain.Candle{
			Time:   k.KlineTime.IntPart() / 1000,
			Open:   k.Open.InexactFloat64(),
			High:   k.High.InexactFloat64(),
			Low:    k.Low.InexactFloat64(),
			Close:  k.Close.InexactFloat64(),
			Volume: k.Size.InexactFloat64(),
		})
	}

	// EdgeX returns newest first
	if len(candles) > 1 && candles[0].Time > candles[len(candles)-1].Time {
		for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
			candles[i], candles[j] = candles[j], candles[i]
		}
	}
	return candles, nil
}

func isNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
