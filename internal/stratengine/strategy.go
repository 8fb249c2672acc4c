package stratengine

import (
	"encoding/json"

	"trader-core/internal/stratcontext"
	"trader-core/pkg/core"
)

// Strategy is the per-instance contract every built-in strategy implements.
// on_market_data must not block and must be deterministic given its own
// state and inputs; the engine dispatches one event at a time under its
// exclusive lock, so a blocking implementation stalls every other strategy.
type Strategy interface {
	Initialize(config json.RawMessage) error
	OnMarketData(event core.MarketDataEvent) []core.Signal
	OnOrderFilled(order core.Order)
	OnPositionUpdate(position core.Position)
	Shutdown()
	SetContext(ctx *stratcontext.Context)
}

// MultiTimeframeConfig declares that a strategy wants resampled/joined
// candle data instead of the raw market-data stream.
type MultiTimeframeConfig struct {
	Primary      core.Timeframe
	CandleCounts map[core.Timeframe]int
}

// MultiTimeframeStrategy is implemented by strategies that want
// OnMultiTimeframeData instead of OnMarketData. The engine type-asserts
// for this interface in Register, before Initialize is called.
type MultiTimeframeStrategy interface {
	Strategy
	MultiTimeframeConfig() *MultiTimeframeConfig
	OnMultiTimeframeData(primary core.Candle, recent map[core.Timeframe][]core.Candle) []core.Signal
}

// Factory builds a fresh Strategy instance. Registered at package init time
// by each built-in strategy package, forming the compile-time registry
// spec.md's design notes call for: no central hand-maintained switch
// statement dispatches by strategy id.
type Factory func() Strategy

var (
	factories = make(map[string]Factory)
)

// RegisterFactory adds id to the compile-time registry. Call from an
// init() in the strategy's own package. Panics on a duplicate id, since
// that indicates two strategy packages collided at build time.
func RegisterFactory(id string, f Factory) {
	if _, exists := factories[id]; exists {
		panic("stratengine: duplicate strategy factory id " + id)
	}
	factories[id] = f
}

// NewByID builds a fresh Strategy instance from the compile-time registry.
// ok is false if no factory was registered for id.
func NewByID(id string) (Strategy, bool) {
	f, ok := factories[id]
	if !ok {
		return nil, false
	}
	return f(), true
}

// RegisteredIDs returns every strategy id known to the compile-time
// registry, for diagnostics and the dashboard's strategy picker.
func RegisteredIDs() []string {
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	return ids
}
