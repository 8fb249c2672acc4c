package stratengine

import "trader-core/pkg/core"

// candleStore keeps a bounded per-(ticker, timeframe) history so
// multi-timeframe strategies can be handed "recent candles" without each
// strategy re-buffering the stream itself.
type candleStore struct {
	maxBars int
	history map[core.Ticker]map[core.Timeframe][]core.Candle
}

func newCandleStore(maxBars int) *candleStore {
	if maxBars <= 0 {
		maxBars = 500
	}
	return &candleStore{maxBars: maxBars, history: make(map[core.Ticker]map[core.Timeframe][]core.Candle)}
}

func (s *candleStore) append(c core.Candle) {
	byTF := s.history[c.Ticker]
	if byTF == nil {
		byTF = make(map[core.Timeframe][]core.Candle)
		s.history[c.Ticker] = byTF
	}
	bars := append(byTF[c.Timeframe], c)
	if len(bars) > s.maxBars {
		bars = bars[len(bars)-s.maxBars:]
	}
	byTF[c.Timeframe] = bars
}

// recent returns the last n candles for (ticker, timeframe), oldest first.
func (s *candleStore) recent(ticker core.Ticker, tf core.Timeframe, n int) []core.Candle {
	bars := s.history[ticker][tf]
	if n <= 0 || n >= len(bars) {
		return append([]core.Candle(nil), bars...)
	}
	return append([]core.Candle(nil), bars[len(bars)-n:]...)
}
