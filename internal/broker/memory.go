package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InMemoryBroker is a reference Broker implementation backed by the exchange
// market-hours calendar in market_hours.go. It keeps orders and positions in
// process memory and fills market/limit orders immediately against a
// caller-supplied quote book. Stop, stop-limit and trailing-stop orders are
// accepted with status "new" and are never triggered; they stay open until
// cancelled.
type InMemoryBroker struct {
	mu        sync.Mutex
	log       zerolog.Logger
	hours     *MarketHoursService
	exchange  string
	account   Account
	quotes    map[string]Quote
	orders    map[string]*Order
	positions map[string]*Position
}

// NewInMemoryBroker constructs a reference broker seeded with a starting
// account balance and defaulting to NYSE market hours.
func NewInMemoryBroker(log zerolog.Logger, account Account) *InMemoryBroker {
	return &InMemoryBroker{
		log:       log.With().Str("component", "memory_broker").Logger(),
		hours:     NewMarketHoursService(log),
		exchange:  "NYSE",
		account:   account,
		quotes:    make(map[string]Quote),
		orders:    make(map[string]*Order),
		positions: make(map[string]*Position),
	}
}

// SetQuote seeds or updates the quote book a caller uses to drive fills.
func (b *InMemoryBroker) SetQuote(symbol string, bid, ask float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = Quote{Symbol: symbol, Bid: bid, Ask: ask, Timestamp: time.Now()}
}

func (b *InMemoryBroker) GetAccount(ctx context.Context) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account, nil
}

func (b *InMemoryBroker) IsMarketOpen(ctx context.Context, exchange string) (MarketStatus, error) {
	if exchange == "" {
		exchange = b.exchange
	}
	clock := b.hours.Clock(exchange)
	return MarketStatus{IsOpen: clock.IsOpen, NextOpen: clock.NextOpen, NextClose: clock.NextClose}, nil
}

func (b *InMemoryBroker) fillPrice(symbol string, side string) float64 {
	q, ok := b.quotes[symbol]
	if !ok {
		return 0
	}
	if side == "BUY" {
		return q.Ask
	}
	return q.Bid
}

func (b *InMemoryBroker) place(req OrderRequest, orderType string, limitPrice, stopPrice *float64) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Qty <= 0 {
		return Order{}, fmt.Errorf("place order: qty must be positive, got %v", req.Qty)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	status, filledQty, price := OrderFilled, req.Qty, b.fillPrice(req.Symbol, req.Side)
	if orderType == "stop" || orderType == "stop_limit" || orderType == "trailing_stop" {
		status, filledQty, price = OrderNew, 0, 0
	}
	order := &Order{
		ID:             uuid.NewString(),
		ClientOrderID:  clientID,
		Symbol:         req.Symbol,
		Qty:            req.Qty,
		Side:           req.Side,
		Type:           orderType,
		TimeInForce:    req.TimeInForce,
		LimitPrice:     limitPrice,
		StopPrice:      stopPrice,
		Status:         status,
		FilledQty:      filledQty,
		FilledAvgPrice: price,
		SubmittedAt:    time.Now(),
	}
	b.orders[order.ID] = order
	if status == OrderFilled {
		b.applyFill(*order)
	}

	return *order, nil
}

func (b *InMemoryBroker) applyFill(order Order) {
	pos, exists := b.positions[order.Symbol]
	signedQty := order.FilledQty
	if order.Side == "SELL" {
		signedQty = -signedQty
	}

	if !exists {
		if signedQty == 0 {
			return
		}
		b.positions[order.Symbol] = &Position{
			Symbol:        order.Symbol,
			Qty:           signedQty,
			AvgEntryPrice: order.FilledAvgPrice,
			CurrentPrice:  order.FilledAvgPrice,
		}
		return
	}

	newQty := pos.Qty + signedQty
	if newQty == 0 {
		delete(b.positions, order.Symbol)
		return
	}
	pos.Qty = newQty
	pos.CurrentPrice = order.FilledAvgPrice
}

func (b *InMemoryBroker) PlaceMarketOrder(ctx context.Context, req OrderRequest) (Order, error) {
	return b.place(req, "market", nil, nil)
}

func (b *InMemoryBroker) PlaceLimitOrder(ctx context.Context, req OrderRequest, limitPrice float64) (Order, error) {
	return b.place(req, "limit", &limitPrice, nil)
}

func (b *InMemoryBroker) PlaceStopOrder(ctx context.Context, req OrderRequest, stopPrice float64) (Order, error) {
	return b.place(req, "stop", nil, &stopPrice)
}

func (b *InMemoryBroker) PlaceStopLimitOrder(ctx context.Context, req OrderRequest, stopPrice, limitPrice float64) (Order, error) {
	return b.place(req, "stop_limit", &limitPrice, &stopPrice)
}

func (b *InMemoryBroker) PlaceTrailingStopOrder(ctx context.Context, req OrderRequest, trailPercent float64) (Order, error) {
	return b.place(req, "trailing_stop", nil, nil)
}

func (b *InMemoryBroker) GetOrder(ctx context.Context, id string) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("get order: %s not found", id)
	}
	return *order, nil
}

func (b *InMemoryBroker) GetOrders(ctx context.Context, status OrderStatus, limit int, symbols []string) ([]Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	var out []Order
	for _, o := range b.orders {
		if status != "" && o.Status != status {
			continue
		}
		if len(want) > 0 && !want[o.Symbol] {
			continue
		}
		out = append(out, *o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *InMemoryBroker) CancelOrder(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("cancel order: %s not found", id)
	}
	order.Status = OrderCanceled
	return nil
}

func (b *InMemoryBroker) CancelAllOrders(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.Status == OrderNew || o.Status == OrderPartial {
			o.Status = OrderCanceled
		}
	}
	return nil
}

func (b *InMemoryBroker) GetPositions(ctx context.Context) ([]Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (b *InMemoryBroker) GetPosition(ctx context.Context, symbol string) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[symbol]
	if !ok {
		return Position{}, fmt.Errorf("get position: %s not held", symbol)
	}
	return *pos, nil
}

func (b *InMemoryBroker) ClosePosition(ctx context.Context, symbol string, qty *float64) (Order, error) {
	b.mu.Lock()
	pos, ok := b.positions[symbol]
	if !ok {
		b.mu.Unlock()
		return Order{}, fmt.Errorf("close position: %s not held", symbol)
	}
	closeQty := pos.Qty
	if qty != nil {
		closeQty = *qty
	}
	side := "SELL"
	if closeQty < 0 {
		side = "BUY"
		closeQty = -closeQty
	}
	b.mu.Unlock()

	return b.place(OrderRequest{Symbol: symbol, Qty: closeQty, Side: side, TimeInForce: TIFDay}, "market", nil, nil)
}

func (b *InMemoryBroker) CloseAllPositions(ctx context.Context) error {
	b.mu.Lock()
	symbols := make([]string, 0, len(b.positions))
	for s := range b.positions {
		symbols = append(symbols, s)
	}
	b.mu.Unlock()

	for _, s := range symbols {
		if _, err := b.ClosePosition(ctx, s, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBroker) GetLatestQuote(ctx context.Context, symbol string) (Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("get quote: %s has no seeded quote", symbol)
	}
	return q, nil
}

func (b *InMemoryBroker) GetBars(ctx context.Context, symbol string, timeframe string, start, end time.Time, limit int) ([]Bar, error) {
	return nil, fmt.Errorf("get bars: historical bars not supported by the in-memory reference broker")
}

var _ Broker = (*InMemoryBroker)(nil)
