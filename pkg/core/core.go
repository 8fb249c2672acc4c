// Package core defines the shared data vocabulary used across the trading
// runtime: tickers, candles, orders, fills, positions, and signals. It has
// no dependency on any internal package, so it can be imported by every
// layer from the matching engine up to the API façade.
package core

import (
	"fmt"
	"time"
)

// MarketKind distinguishes the venue family a ticker belongs to.
type MarketKind string

const (
	MarketCrypto MarketKind = "CRYPTO"
	MarketStock  MarketKind = "STOCK"
)

// Ticker identifies a tradeable instrument. Two tickers are equal iff their
// (Base, Quote, Kind) tuples are equal; String is the canonical form used
// as a map key and in persistence.
type Ticker struct {
	Base  string
	Quote string
	Kind  MarketKind
}

// NewTicker builds a crypto-style ticker, e.g. NewTicker("BTC", "USDT").
func NewTicker(base, quote string) Ticker {
	return Ticker{Base: base, Quote: quote, Kind: MarketCrypto}
}

// NewStockTicker builds a single-symbol stock ticker (quote is the currency).
func NewStockTicker(symbol, currency string) Ticker {
	return Ticker{Base: symbol, Quote: currency, Kind: MarketStock}
}

// String returns the canonical "BASE/QUOTE" form.
func (t Ticker) String() string {
	if t.Quote == "" {
		return t.Base
	}
	return t.Base + "/" + t.Quote
}

// ParseTicker accepts either "BASE/QUOTE" or a bare symbol.
func ParseTicker(s string) Ticker {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return Ticker{Base: s[:i], Quote: s[i+1:], Kind: MarketCrypto}
		}
	}
	return Ticker{Base: s, Kind: MarketStock}
}

// Timeframe is a closed enum of candle aggregation buckets.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
)

// Duration returns the wall-clock span of one bucket of this timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case M30:
		return 30 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case D1:
		return 24 * time.Hour
	case W1:
		return 7 * 24 * time.Hour
	default:
		return time.Minute
	}
}

// Candle is a compact OHLCV aggregate over a fixed time bucket.
//
// Invariants (enforced by Validate, not by the constructor, since candles
// frequently arrive pre-built from a venue connector): Low <= Open,Close <=
// High; CloseTime > OpenTime; Volume >= 0.
type Candle struct {
	Ticker        Ticker
	Timeframe     Timeframe
	OpenTime      time.Time
	Open          Decimal
	High          Decimal
	Low           Decimal
	Close         Decimal
	Volume        Decimal
	CloseTime     time.Time
	QuoteVolume   *Decimal
	TradeCount    *int64
}

// Validate checks the OHLCV invariants spec.md §3 requires.
func (c Candle) Validate() error {
	if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) {
		return fmt.Errorf("candle %s %s: low %s exceeds open/close", c.Ticker, c.Timeframe, c.Low)
	}
	if c.High.LessThan(c.Open) || c.High.LessThan(c.Close) {
		return fmt.Errorf("candle %s %s: high %s below open/close", c.Ticker, c.Timeframe, c.High)
	}
	if !c.CloseTime.After(c.OpenTime) {
		return fmt.Errorf("candle %s %s: close_time must be after open_time", c.Ticker, c.Timeframe)
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("candle %s %s: volume must be >= 0", c.Ticker, c.Timeframe)
	}
	return nil
}

// MarketDataKind tags the variant carried by a MarketDataEvent.
type MarketDataKind string

const (
	EventKline     MarketDataKind = "KLINE"
	EventTicker    MarketDataKind = "TICKER"
	EventTrade     MarketDataKind = "TRADE"
	EventOrderBook MarketDataKind = "ORDER_BOOK"
)

// MarketDataEvent is a tagged union over the feed types strategies may
// receive. Only Kline is consumed by the built-in strategies; the engine
// also keeps a per-timeframe history of Kline events for multi-timeframe
// strategies.
type MarketDataEvent struct {
	Kind      MarketDataKind
	Source    string // source-exchange tag
	Arrived   time.Time
	Kline     *Candle
	TickerSnap *TickerSnapshot
	Trade     *Trade
	Book      *OrderBookTop
}

// TickerSnapshot is a best-bid/ask + last-price snapshot for a ticker.
type TickerSnapshot struct {
	Ticker    Ticker
	LastPrice Decimal
	BestBid   Decimal
	BestAsk   Decimal
	Timestamp time.Time
}

// Trade is a single executed trade on the venue, as reported by its feed.
type Trade struct {
	Ticker    Ticker
	Price     Decimal
	Quantity  Decimal
	Side      Side
	Timestamp time.Time
}

// OrderBookTop is a shallow order-book view (best levels only); the full
// depth book is out of scope for the core per spec.md §1.
type OrderBookTop struct {
	Ticker    Ticker
	BestBid   Decimal
	BestAsk   Decimal
	Timestamp time.Time
}
