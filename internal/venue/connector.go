package venue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"trader-core/internal/coreerr"
	"trader-core/pkg/core"
)

// RESTConfig configures a RESTConnector's underlying HTTP client.
type RESTConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// RESTConnector is a generic, restricted-account venue connector: a thin
// resty client wired for retry-on-5xx the way the scanner's Gamma client
// and the CLOB client are, paired with the history-folding account/position
// view since its account API does not expose live balances.
type RESTConnector struct {
	http   *resty.Client
	name   string
	logger *slog.Logger
}

// NewRESTConnector builds a connector pointed at cfg.BaseURL.
func NewRESTConnector(name string, cfg RESTConfig, logger *slog.Logger) *RESTConnector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 2
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &RESTConnector{http: client, name: name, logger: logger.With("venue", name)}
}

// ExchangeName returns the connector's configured venue name.
func (c *RESTConnector) ExchangeName() string { return c.name }

// executionPageResponse is the on-wire page shape the history endpoint
// returns; field names follow the venue-agnostic wire contract the spec
// describes rather than any single real exchange's JSON.
type executionPageResponse struct {
	Trades []struct {
		Ticker     string  `json:"ticker"`
		Side       string  `json:"side"`
		Price      string  `json:"price"`
		Quantity   string  `json:"quantity"`
		Fee        string  `json:"fee"`
		ExecutedAt string  `json:"executed_at"`
		OrderID    string  `json:"order_id"`
	} `json:"trades"`
	NextCursor string `json:"next_cursor"`
}

// FetchExecutionHistory pages the venue's trade history once; callers that
// need the full range drive repeated calls via SyncExecutionHistory.
func (c *RESTConnector) FetchExecutionHistory(ctx context.Context, req ExecutionHistoryRequest) (ExecutionHistoryPage, error) {
	var page executionPageResponse
	r := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"start_date": req.StartDate.UTC().Format(time.RFC3339),
			"end_date":   req.EndDate.UTC().Format(time.RFC3339),
			"cursor":     req.Cursor,
		})
	if req.Side != nil {
		r = r.SetQueryParam("side", string(*req.Side))
	}

	resp, err := r.SetResult(&page).Get("/executions")
	if err != nil {
		return ExecutionHistoryPage{}, coreerr.Wrap(coreerr.KindVenueNetwork, "venue.FetchExecutionHistory", err)
	}
	if resp.StatusCode() == 429 {
		return ExecutionHistoryPage{}, &coreerr.Error{Kind: coreerr.KindVenueAPI, Op: "venue.FetchExecutionHistory", Code: 429, Message: "rate limited"}
	}
	if resp.StatusCode() != 200 {
		return ExecutionHistoryPage{}, coreerr.VenueAPIError("venue.FetchExecutionHistory", resp.StatusCode(), resp.String())
	}

	out := ExecutionHistoryPage{NextCursor: page.NextCursor}
	for _, t := range page.Trades {
		price, perr := core.ParseDecimal(t.Price)
		qty, qerr := core.ParseDecimal(t.Quantity)
		fee, ferr := core.ParseDecimal(t.Fee)
		at, terr := time.Parse(time.RFC3339, t.ExecutedAt)
		if perr != nil || qerr != nil || ferr != nil || terr != nil {
			return ExecutionHistoryPage{}, coreerr.New(coreerr.KindVenueParse, "venue.FetchExecutionHistory")
		}
		out.Trades = append(out.Trades, core.ExecutionCacheRow{
			OrderID:     t.OrderID,
			Ticker:      core.ParseTicker(t.Ticker),
			Side:        core.Side(t.Side),
			Price:       price,
			Quantity:    qty,
			Fee:         fee,
			RealizedPnL: core.Zero,
			ExecutedAt:  at,
		})
	}
	return out, nil
}

// FetchAccount is unsupported on a restricted-account connector; callers
// must fall back to FoldAccountFromHistory instead.
func (c *RESTConnector) FetchAccount(ctx context.Context) (Account, error) {
	return Account{}, coreerr.New(coreerr.KindVenueAPI, "venue.FetchAccount")
}

// FetchPositions is unsupported for the same reason as FetchAccount.
func (c *RESTConnector) FetchPositions(ctx context.Context) ([]core.Position, error) {
	return nil, coreerr.New(coreerr.KindVenueAPI, "venue.FetchPositions")
}

// FetchPendingOrders is unsupported on a restricted-account connector.
func (c *RESTConnector) FetchPendingOrders(ctx context.Context) ([]PendingOrder, error) {
	return nil, coreerr.New(coreerr.KindVenueAPI, "venue.FetchPendingOrders")
}

// FetchCurrentPrice quotes a single ticker, used by FoldAccountFromHistory
// to mark derived positions.
func (c *RESTConnector) FetchCurrentPrice(ctx context.Context, ticker core.Ticker) (core.Decimal, error) {
	var out struct {
		Price string `json:"price"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/price/" + ticker.String())
	if err != nil {
		return core.Zero, coreerr.Wrap(coreerr.KindVenueNetwork, "venue.FetchCurrentPrice", err)
	}
	if resp.StatusCode() != 200 {
		return core.Zero, coreerr.VenueAPIError("venue.FetchCurrentPrice", resp.StatusCode(), resp.String())
	}
	price, err := core.ParseDecimal(out.Price)
	if err != nil {
		return core.Zero, coreerr.New(coreerr.KindVenueParse, "venue.FetchCurrentPrice")
	}
	return price, nil
}

// WindowSize returns the per-page date range a sync should request: ISA
// accounts page in 365-day windows, general accounts in 90-day windows.
func WindowSize(isISA bool) time.Duration {
	if isISA {
		return 365 * 24 * time.Hour
	}
	return 90 * 24 * time.Hour
}

// rateLimitBackoff is the delay SyncExecutionHistory waits after a single
// rate-limit hit before retrying once. Overridable by tests.
var rateLimitBackoff = 2 * time.Second

// SyncExecutionHistory pages FetchExecutionHistory across [start, end) in
// WindowSize-sized ranges, stopping a range when the cursor repeats or
// comes back empty. A single venue API error (such as a 429 rate limit)
// gets a 2-second backoff and one retry; a second consecutive one aborts
// the sync.
func SyncExecutionHistory(ctx context.Context, p Provider, start, end time.Time, isISA bool) ([]core.ExecutionCacheRow, error) {
	window := WindowSize(isISA)
	var all []core.ExecutionCacheRow

	for winStart := start; winStart.Before(end); winStart = winStart.Add(window) {
		winEnd := winStart.Add(window)
		if winEnd.After(end) {
			winEnd = end
		}

		cursor := ""
		lastCursor := ""
		retried := false
		for {
			page, err := p.FetchExecutionHistory(ctx, ExecutionHistoryRequest{StartDate: winStart, EndDate: winEnd, Cursor: cursor})
			if err != nil {
				if coreerr.Is(err, coreerr.KindVenueAPI) && !retried {
					retried = true
					select {
					case <-time.After(rateLimitBackoff):
					case <-ctx.Done():
						return all, ctx.Err()
					}
					continue
				}
				return all, fmt.Errorf("sync execution history: %w", err)
			}
			retried = false

			all = append(all, page.Trades...)
			if page.NextCursor == "" || page.NextCursor == lastCursor {
				break
			}
			lastCursor = page.NextCursor
			cursor = page.NextCursor
		}
	}

	return all, nil
}
