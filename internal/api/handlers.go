package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"trader-core/internal/config"
	"trader-core/internal/coreerr"
	"trader-core/pkg/core"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	provider Provider
	cfg      config.DashboardConfig
	hub      *Hub
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(provider Provider, cfg config.DashboardConfig, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{provider: provider, cfg: cfg, hub: hub, logger: logger.With("component", "api-handlers")}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleSnapshot returns the current dashboard state.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := BuildSnapshot(h.provider)
	writeJSON(w, http.StatusOK, snapshot)
}

// HandlePositions serves GET /positions.
func (h *Handlers) HandlePositions(w http.ResponseWriter, r *http.Request) {
	positions := h.provider.Positions()
	summaries := make([]PositionSummary, 0, len(positions))
	for _, p := range positions {
		summaries = append(summaries, NewPositionSummary(p))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleEquityCurve serves GET /equity-curve?from&to, both RFC3339.
func (h *Handlers) HandleEquityCurve(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.EquityPoints(from, to))
}

// HandleOrders serves POST /orders: submits an order through the matching
// engine.
func (h *Handlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil)
		return
	}
	var req core.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.provider.SubmitOrder(r.Context(), req)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	h.hub.BroadcastEvent(DashboardEvent{Type: "order", Timestamp: time.Now(), Ticker: order.Ticker.String(), Data: NewOrderEvent(*order)})
	writeJSON(w, http.StatusOK, order)
}

// HandleSyncEquity serves POST /sync-equity.
func (h *Handlers) HandleSyncEquity(w http.ResponseWriter, r *http.Request) {
	var req SyncEquityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.provider.SyncEquity(r.Context(), req); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, BuildSnapshot(h.provider).Equity)
}

// HandleSimulationStart serves POST /simulation/start.
func (h *Handlers) HandleSimulationStart(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.StartSimulation(); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// HandleSimulationStop serves POST /simulation/stop.
func (h *Handlers) HandleSimulationStop(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.StopSimulation(); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// HandleSimulationOrder serves POST /simulation/order, identical to
// HandleOrders but kept as a distinct route per the external interface.
func (h *Handlers) HandleSimulationOrder(w http.ResponseWriter, r *http.Request) {
	h.HandleOrders(w, r)
}

// HandleWebSocket upgrades the connection and creates a new WebSocket client.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, parseTickerFilter(r.URL.Query().Get("ticker")))

	snapshot := BuildSnapshot(h.provider)
	evt := DashboardEvent{Type: "snapshot", Timestamp: time.Now(), Data: snapshot}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to client")
	}
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	from := time.Time{}
	to := time.Now()
	var err error
	if fromStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toStr != "" {
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps the core error taxonomy (§7) onto HTTP status codes.
func statusForErr(err error) int {
	kind, ok := coreerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case coreerr.KindConfigInvalid:
		return http.StatusBadRequest
	case coreerr.KindStrategyNotFound, coreerr.KindPositionNotFound, coreerr.KindSymbolPositionNotFound:
		return http.StatusNotFound
	case coreerr.KindAlreadyRunning, coreerr.KindNotRunning, coreerr.KindStrategyAlreadyExists:
		return http.StatusConflict
	case coreerr.KindVenueNetwork, coreerr.KindVenueAPI, coreerr.KindVenueParse, coreerr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
