package broker

import (
	"context"
	"time"
)

// Account is the broker-reported snapshot backing cash-constrained sizing.
type Account struct {
	Equity         float64
	BuyingPower    float64
	Cash           float64
	PortfolioValue float64
	Status         string
	DaytradeCount  int
}

// TimeInForce is the broker order lifetime policy.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
)

// OrderStatus mirrors broker-side order lifecycle states.
type OrderStatus string

const (
	OrderNew      OrderStatus = "new"
	OrderFilled   OrderStatus = "filled"
	OrderPartial  OrderStatus = "partially_filled"
	OrderCanceled OrderStatus = "canceled"
	OrderRejected OrderStatus = "rejected"
)

// Order is the broker's view of a submitted order, filled in as it executes.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Qty           float64
	Side          string // BUY or SELL
	Type          string // market, limit, stop, stop_limit, trailing_stop
	TimeInForce   TimeInForce
	LimitPrice    *float64
	StopPrice     *float64
	Status        OrderStatus
	FilledQty     float64
	FilledAvgPrice float64
	SubmittedAt   time.Time
}

// Position is the broker's view of a held position, independent of this
// module's own Position record.
type Position struct {
	Symbol       string
	Qty          float64
	AvgEntryPrice float64
	CurrentPrice float64
	MarketValue  float64
	UnrealizedPL float64
}

// Quote is the latest top-of-book quote for a symbol.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Bar is a single OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// MarketStatus answers whether a market is open along with the bounds of the
// current or next trading session.
type MarketStatus struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// OrderRequest carries the common fields across all order-placement calls.
type OrderRequest struct {
	Symbol        string
	Qty           float64
	Side          string // BUY or SELL
	TimeInForce   TimeInForce
	ClientOrderID string
}

// Broker is the single external-execution-venue contract the order executor
// and intraday monitor depend on. A concrete adapter wraps a specific
// brokerage API; InMemoryBroker in memory.go is the reference implementation,
// which cmd/server wires in.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	IsMarketOpen(ctx context.Context, exchange string) (MarketStatus, error)

	PlaceMarketOrder(ctx context.Context, req OrderRequest) (Order, error)
	PlaceLimitOrder(ctx context.Context, req OrderRequest, limitPrice float64) (Order, error)
	PlaceStopOrder(ctx context.Context, req OrderRequest, stopPrice float64) (Order, error)
	PlaceStopLimitOrder(ctx context.Context, req OrderRequest, stopPrice, limitPrice float64) (Order, error)
	PlaceTrailingStopOrder(ctx context.Context, req OrderRequest, trailPercent float64) (Order, error)

	GetOrder(ctx context.Context, id string) (Order, error)
	GetOrders(ctx context.Context, status OrderStatus, limit int, symbols []string) ([]Order, error)
	CancelOrder(ctx context.Context, id string) error
	CancelAllOrders(ctx context.Context) error

	GetPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, symbol string) (Position, error)
	ClosePosition(ctx context.Context, symbol string, qty *float64) (Order, error)
	CloseAllPositions(ctx context.Context) error

	GetLatestQuote(ctx context.Context, symbol string) (Quote, error)
	GetBars(ctx context.Context, symbol string, timeframe string, start, end time.Time, limit int) ([]Bar, error)
}
