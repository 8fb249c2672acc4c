package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trader-core/internal/config"
	"trader-core/internal/riskgate"
	"trader-core/pkg/core"
)

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.DashboardConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://mm.internal:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "mm.internal:8080",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// fakeProvider is a minimal, deterministic Provider for handler tests.
type fakeProvider struct {
	positions []*core.Position
	risk      riskgate.Snapshot
	equity    EquitySummary
	points    []core.EquityPoint
	submitErr error

	lastSubmit core.OrderRequest
	events     chan DashboardEvent
}

func (f *fakeProvider) Positions() []*core.Position                      { return f.positions }
func (f *fakeProvider) RiskSnapshot(now time.Time) riskgate.Snapshot     { return f.risk }
func (f *fakeProvider) EquitySummary() EquitySummary                     { return f.equity }
func (f *fakeProvider) EquityPoints(from, to time.Time) []core.EquityPoint { return f.points }

func (f *fakeProvider) SubmitOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.lastSubmit = req
	return &core.Order{ID: "order-1", Ticker: req.Ticker, Side: req.Side, Type: req.Type, Status: core.OrderOpen}, nil
}

func (f *fakeProvider) SyncEquity(ctx context.Context, req SyncEquityRequest) error { return nil }
func (f *fakeProvider) StartSimulation() error                                     { return nil }
func (f *fakeProvider) StopSimulation() error                                      { return nil }
func (f *fakeProvider) DashboardEvents() <-chan DashboardEvent                     { return f.events }

func newTestHandlers() (*Handlers, *fakeProvider) {
	fp := &fakeProvider{equity: EquitySummary{CurrentEquity: core.DI(1000)}}
	h := NewHandlers(fp, config.DashboardConfig{}, NewHub(slog.Default(), 0), slog.Default())
	return h, fp
}

func TestHandleSnapshotReturnsProviderState(t *testing.T) {
	h, fp := newTestHandlers()
	fp.positions = []*core.Position{
		{Ticker: core.NewTicker("BTC", "USDT"), StrategyID: "s1", Side: core.Buy, Quantity: core.DI(1)},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap DashboardSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Ticker != "BTC/USDT" {
		t.Fatalf("unexpected positions in snapshot: %+v", snap.Positions)
	}
}

func TestHandleOrdersSubmitsAndBroadcasts(t *testing.T) {
	h, fp := newTestHandlers()
	body := `{"ticker":{"base":"BTC","quote":"USDT","kind":"CRYPTO"},"side":"BUY","type":"MARKET","quantity":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if fp.lastSubmit.Side != core.Buy {
		t.Fatalf("expected submitted order side BUY, got %v", fp.lastSubmit.Side)
	}
	if got := len(h.hub.broadcast); got != 1 {
		t.Fatalf("expected 1 order event queued for broadcast, got %d", got)
	}
}

func TestHandleOrdersRejectsNonPost(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	h.HandleOrders(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleEquityCurveParsesRange(t *testing.T) {
	h, fp := newTestHandlers()
	fp.points = []core.EquityPoint{{Equity: core.DI(100)}}

	req := httptest.NewRequest(http.MethodGet, "/equity-curve?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.HandleEquityCurve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var points []core.EquityPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
}

func TestHandleEquityCurveRejectsBadRange(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/equity-curve?from=not-a-date", nil)
	rec := httptest.NewRecorder()

	h.HandleEquityCurve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
