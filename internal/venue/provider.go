// Package venue defines the outbound capability interface every exchange
// connector implements, plus the account-folding fallback used by venues
// whose account API is restricted (wrapped/ISA accounts): the core derives
// balances and positions by replaying the execution history instead of
// calling the venue directly.
package venue

import (
	"context"
	"time"

	"trader-core/pkg/core"
)

// Account is the balance snapshot fetch_account returns.
type Account struct {
	TotalBalance     core.Decimal
	AvailableBalance core.Decimal
	MarginUsed       core.Decimal
	UnrealizedPnL    core.Decimal
	Currency         string
}

// PendingOrder is one resting order as reported by the venue, distinct from
// core.Order since a venue's own order id/shape rarely matches the engine's.
type PendingOrder struct {
	VenueOrderID string
	Ticker       core.Ticker
	Side         core.Side
	Price        core.Decimal
	Quantity     core.Decimal
	FilledQty    core.Decimal
	CreatedAt    time.Time
}

// ExecutionHistoryRequest pages through a venue's trade history.
type ExecutionHistoryRequest struct {
	StartDate time.Time
	EndDate   time.Time
	Side      *core.Side
	Cursor    string // opaque; "" means first page
}

// ExecutionHistoryPage is one page of trades plus the cursor for the next
// one; an empty NextCursor means this was the final page.
type ExecutionHistoryPage struct {
	Trades     []core.ExecutionCacheRow
	NextCursor string
}

// Provider is the capability interface every venue connector implements.
// The engine and exchange-sync loop depend only on this interface, never on
// a concrete connector type.
type Provider interface {
	FetchAccount(ctx context.Context) (Account, error)
	FetchPositions(ctx context.Context) ([]core.Position, error)
	FetchPendingOrders(ctx context.Context) ([]PendingOrder, error)
	FetchExecutionHistory(ctx context.Context, req ExecutionHistoryRequest) (ExecutionHistoryPage, error)
	ExchangeName() string
}

// CurrentPriceFetcher is implemented by connectors that can quote a single
// ticker's current price; FoldAccountFromHistory needs it to mark
// derived positions, since restricted venues cannot report a live account.
type CurrentPriceFetcher interface {
	FetchCurrentPrice(ctx context.Context, ticker core.Ticker) (core.Decimal, error)
}

// FoldAccountFromHistory derives an Account and a position list from a
// venue's execution history, for connectors whose account API is
// restricted. Active tickers are those with net positive volume; entry
// price is the volume-weighted buy average; cash is unknown and reported
// as zero, matching the venue's own inability to see it.
func FoldAccountFromHistory(ctx context.Context, rows []core.ExecutionCacheRow, prices CurrentPriceFetcher) (Account, []core.Position, error) {
	type accum struct {
		netQty      core.Decimal
		buyQty      core.Decimal
		buyNotional core.Decimal
		realized    core.Decimal
		fees        core.Decimal
	}
	byTicker := make(map[core.Ticker]*accum)
	order := make([]core.Ticker, 0)

	for _, row := range rows {
		a, ok := byTicker[row.Ticker]
		if !ok {
			a = &accum{netQty: core.Zero, buyQty: core.Zero, buyNotional: core.Zero, realized: core.Zero, fees: core.Zero}
			byTicker[row.Ticker] = a
			order = append(order, row.Ticker)
		}
		switch row.Side {
		case core.Buy:
			a.netQty = a.netQty.Add(row.Quantity)
			a.buyQty = a.buyQty.Add(row.Quantity)
			a.buyNotional = a.buyNotional.Add(row.Price.Mul(row.Quantity))
		case core.Sell:
			a.netQty = a.netQty.Sub(row.Quantity)
		}
		a.realized = a.realized.Add(row.RealizedPnL)
		a.fees = a.fees.Add(row.Fee)
	}

	var positions []core.Position
	unrealizedTotal := core.Zero
	for _, ticker := range order {
		a := byTicker[ticker]
		if !a.netQty.IsPositive() {
			continue
		}
		entryPrice := core.Zero
		if a.buyQty.IsPositive() {
			entryPrice = a.buyNotional.Div(a.buyQty)
		}

		current := entryPrice
		if prices != nil {
			if p, err := prices.FetchCurrentPrice(ctx, ticker); err == nil {
				current = p
			}
		}
		unrealized := current.Sub(entryPrice).Mul(a.netQty)
		unrealizedTotal = unrealizedTotal.Add(unrealized)

		positions = append(positions, core.Position{
			Ticker:        ticker,
			Side:          core.Buy,
			Quantity:      a.netQty,
			AvgEntryPrice: entryPrice,
			RealizedPnL:   a.realized,
			UnrealizedPnL: unrealized,
			LastMarkPrice: current,
			FeesPaid:      a.fees,
		})
	}

	account := Account{
		TotalBalance:     core.Zero,
		AvailableBalance: core.Zero,
		MarginUsed:       core.Zero,
		UnrealizedPnL:    unrealizedTotal,
		Currency:         "UNKNOWN",
	}
	return account, positions, nil
}
