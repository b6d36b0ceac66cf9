package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/transport"
)

const (
	defaultRESTURL = "https://api.bybit.com"
	recvWindow     = "5000"
)

// Executor submits orders to Bybit's v5 private REST endpoints. It assigns
// internal order ids and maps them to client order link ids, so strategies
// and the position ledger never see exchange-native identifiers. The open
// registry is safe for concurrent reads; the synchronous pipeline reads it
// from the input derivation while async mode mutates it from the worker.
type Executor struct {
	baseURL  string
	category string
	signer   *transport.Signer
	client   *http.Client
	logger   *slog.Logger

	nextID atomic.Uint64

	mu    sync.RWMutex
	open  map[domain.OrderID]*liveOrder
	links map[string]domain.OrderID
}

type liveOrder struct {
	order  domain.Order
	linkID string
}

// NewExecutor builds a live executor. category is the Bybit product class
// ("linear" for USDT perpetuals).
func NewExecutor(baseURL, category string, signer *transport.Signer, logger *slog.Logger) *Executor {
	if baseURL == "" {
		baseURL = defaultRESTURL
	}
	return &Executor{
		baseURL:  baseURL,
		category: category,
		signer:   signer,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("component", "bybit_executor")),
		open:     make(map[domain.OrderID]*liveOrder),
		links:    make(map[string]domain.OrderID),
	}
}

// OpenOrders snapshots the currently tracked live orders.
func (x *Executor) OpenOrders() []domain.Order {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.Order, 0, len(x.open))
	for _, lo := range x.open {
		out = append(out, lo.order)
	}
	return out
}

// apiResponse is the common envelope of every v5 REST reply.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// Execute performs one action. A transport failure or deadline returns
// OutcomeUnknown with the underlying error; a venue refusal returns
// OutcomeRejected with retMsg and a nil error.
func (x *Executor) Execute(ctx context.Context, action domain.Action) (domain.Outcome, error) {
	switch a := action.(type) {
	case domain.PlaceOrder:
		return x.place(ctx, a)
	case domain.CancelOrder:
		return x.cancel(ctx, a)
	case domain.ModifyOrder:
		return x.modify(ctx, a)
	default:
		return domain.Rejected(fmt.Sprintf("unsupported action %T", action)), nil
	}
}

func (x *Executor) place(ctx context.Context, a domain.PlaceOrder) (domain.Outcome, error) {
	id := domain.OrderID(x.nextID.Add(1))
	linkID := uuid.NewString()

	body := map[string]string{
		"category":    x.category,
		"symbol":      a.Symbol,
		"side":        bybitSide(a.Side),
		"orderType":   "Limit",
		"qty":         a.Qty.String(),
		"price":       a.Price.String(),
		"orderLinkId": linkID,
	}
	resp, err := x.post(ctx, "/v5/order/create", body)
	if err != nil {
		return domain.Outcome{Status: domain.OutcomeUnknown}, fmt.Errorf("bybit: place order: %w", err)
	}
	if resp.RetCode != 0 {
		return domain.Rejected(resp.RetMsg), nil
	}

	x.mu.Lock()
	x.open[id] = &liveOrder{
		order: domain.Order{
			ID:        id,
			Symbol:    a.Symbol,
			Side:      a.Side,
			Price:     a.Price,
			Qty:       a.Qty,
			CreatedAt: time.Now(),
		},
		linkID: linkID,
	}
	x.links[linkID] = id
	x.mu.Unlock()

	x.logger.Info("order placed",
		slog.Uint64("order_id", uint64(id)),
		slog.String("symbol", a.Symbol),
		slog.String("side", string(a.Side)),
		slog.String("price", a.Price.String()),
		slog.String("qty", a.Qty.String()),
	)
	return domain.Accepted(id), nil
}

func (x *Executor) cancel(ctx context.Context, a domain.CancelOrder) (domain.Outcome, error) {
	linkID, ok := x.linkFor(a.OrderID)
	if !ok {
		return domain.Rejected(fmt.Sprintf("unknown order %d", a.OrderID)), nil
	}
	body := map[string]string{
		"category":    x.category,
		"symbol":      a.Symbol,
		"orderLinkId": linkID,
	}
	resp, err := x.post(ctx, "/v5/order/cancel", body)
	if err != nil {
		return domain.Outcome{Status: domain.OutcomeUnknown}, fmt.Errorf("bybit: cancel order: %w", err)
	}
	if resp.RetCode != 0 {
		return domain.Rejected(resp.RetMsg), nil
	}

	x.mu.Lock()
	delete(x.open, a.OrderID)
	delete(x.links, linkID)
	x.mu.Unlock()
	x.logger.Info("order cancelled", slog.Uint64("order_id", uint64(a.OrderID)))
	return domain.Accepted(a.OrderID), nil
}

func (x *Executor) modify(ctx context.Context, a domain.ModifyOrder) (domain.Outcome, error) {
	linkID, ok := x.linkFor(a.OrderID)
	if !ok {
		return domain.Rejected(fmt.Sprintf("unknown order %d", a.OrderID)), nil
	}
	body := map[string]string{
		"category":    x.category,
		"symbol":      a.Symbol,
		"orderLinkId": linkID,
	}
	// Unset fields mean unchanged; the amend endpoint rejects zero values.
	if a.NewQty.IsPositive() {
		body["qty"] = a.NewQty.String()
	}
	if a.NewPrice.IsPositive() {
		body["price"] = a.NewPrice.String()
	}
	resp, err := x.post(ctx, "/v5/order/amend", body)
	if err != nil {
		return domain.Outcome{Status: domain.OutcomeUnknown}, fmt.Errorf("bybit: amend order: %w", err)
	}
	if resp.RetCode != 0 {
		return domain.Rejected(resp.RetMsg), nil
	}

	x.mu.Lock()
	if lo, ok := x.open[a.OrderID]; ok {
		if a.NewPrice.IsPositive() {
			lo.order.Price = a.NewPrice
		}
		if a.NewQty.IsPositive() {
			lo.order.Qty = a.NewQty
		}
	}
	x.mu.Unlock()
	x.logger.Info("order amended", slog.Uint64("order_id", uint64(a.OrderID)))
	return domain.Accepted(a.OrderID), nil
}

// RecordFill updates the open registry from an execution report. Fully
// filled orders drop out of the registry.
func (x *Executor) RecordFill(id domain.OrderID, qty decimal.Decimal) {
	x.mu.Lock()
	defer x.mu.Unlock()
	lo, ok := x.open[id]
	if !ok {
		return
	}
	lo.order.FilledQty = lo.order.FilledQty.Add(qty)
	if lo.order.Remaining().Sign() <= 0 {
		delete(x.open, id)
		delete(x.links, lo.linkID)
	}
}

// ResolveLink maps a client order link id back to the internal order id.
// Unknown links (orders placed outside this process) report false.
func (x *Executor) ResolveLink(linkID string) (domain.OrderID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.links[linkID]
	return id, ok
}

func (x *Executor) linkFor(id domain.OrderID) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	lo, ok := x.open[id]
	if !ok {
		return "", false
	}
	return lo.linkID, true
}

// post signs and sends one v5 request. The signature payload is
// timestamp + apiKey + recvWindow + body per the v5 authentication scheme.
func (x *Executor) post(ctx context.Context, path string, body map[string]string) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", x.signer.APIKey())
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", x.signer.Sign(ts+x.signer.APIKey()+recvWindow+string(payload)))

	httpResp, err := x.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", httpResp.StatusCode, raw)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func bybitSide(s domain.Side) string {
	if s == domain.SideBuy {
		return "Buy"
	}
	return "Sell"
}
