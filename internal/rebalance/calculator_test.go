package rebalance

import (
	"testing"

	"trader-core/pkg/core"
)

func testCalc() *Calculator {
	return New(Config{
		CashTicker:         core.NewTicker("USD", "USD"),
		MinTradeAmount:     core.D(1),
		FeeRate:            core.Zero,
		SellTaxRate:        core.Zero,
		RebalanceThreshold: core.Zero,
	})
}

func TestNormalizeWeightsSumsToOne(t *testing.T) {
	t.Parallel()
	targets := []Target{
		{Ticker: core.NewTicker("A", "USD"), Weight: core.D(1)},
		{Ticker: core.NewTicker("B", "USD"), Weight: core.D(1)},
		{Ticker: core.NewTicker("C", "USD"), Weight: core.D(2)},
	}
	norm := NormalizeWeights(targets)
	sum := core.Zero
	for _, tg := range norm {
		sum = sum.Add(tg.Weight)
	}
	if !sum.Equal(core.One) {
		t.Errorf("normalized weights sum to %s, want 1", sum)
	}
}

func TestCalculateSellsPrecedeBuys(t *testing.T) {
	t.Parallel()
	c := testCalc()
	a := core.NewTicker("A", "USD")
	b := core.NewTicker("B", "USD")

	holdings := []Holding{
		{Ticker: a, Quantity: core.D(10), Price: core.D(100), MarketValue: core.D(1000)},
		{Ticker: b, Quantity: core.Zero, Price: core.D(50), MarketValue: core.Zero},
	}
	targets := []Target{
		{Ticker: a, Weight: core.D(0.2)},
		{Ticker: b, Weight: core.D(0.8)},
	}

	orders := c.Calculate(holdings, targets, core.D(1000))
	if len(orders) == 0 {
		t.Fatal("expected orders")
	}
	sawBuy := false
	for _, o := range orders {
		if o.Side == core.Buy {
			sawBuy = true
		}
		if o.Side == core.Sell && sawBuy {
			t.Fatal("a sell order appeared after a buy order")
		}
	}
}

func TestCalculateUntrackedHoldingIsSold(t *testing.T) {
	t.Parallel()
	c := testCalc()
	tracked := core.NewTicker("A", "USD")
	untracked := core.NewTicker("Z", "USD")

	holdings := []Holding{
		{Ticker: tracked, Quantity: core.D(10), Price: core.D(100), MarketValue: core.D(1000)},
		{Ticker: untracked, Quantity: core.D(5), Price: core.D(20), MarketValue: core.D(100)},
	}
	targets := []Target{{Ticker: tracked, Weight: core.One}}

	orders := c.Calculate(holdings, targets, core.D(1100))
	found := false
	for _, o := range orders {
		if o.Ticker == untracked {
			found = true
			if o.Side != core.Sell {
				t.Errorf("untracked holding order side = %v, want Sell", o.Side)
			}
			if !o.Quantity.Equal(core.D(5)) {
				t.Errorf("untracked holding sell qty = %s, want 5", o.Quantity)
			}
		}
	}
	if !found {
		t.Fatal("expected an order selling the untracked holding")
	}
}

func TestCalculateSkipsBelowThreshold(t *testing.T) {
	t.Parallel()
	c := New(Config{
		CashTicker:         core.NewTicker("USD", "USD"),
		MinTradeAmount:     core.D(1),
		RebalanceThreshold: core.D(0.05),
	})
	a := core.NewTicker("A", "USD")
	holdings := []Holding{{Ticker: a, Quantity: core.D(10), Price: core.D(100), MarketValue: core.D(1000)}}
	targets := []Target{{Ticker: a, Weight: core.One}}

	orders := c.Calculate(holdings, targets, core.D(1000))
	if orders != nil {
		t.Errorf("expected no orders when already at target weight, got %d", len(orders))
	}
}

func TestCashConstrainedScalesDownLateBuys(t *testing.T) {
	t.Parallel()
	c := testCalc()
	a := core.NewTicker("A", "USD")
	b := core.NewTicker("B", "USD")

	holdings := []Holding{
		{Ticker: a, Quantity: core.Zero, Price: core.D(100), MarketValue: core.Zero},
		{Ticker: b, Quantity: core.Zero, Price: core.D(100), MarketValue: core.Zero},
	}
	targets := []Target{
		{Ticker: a, Weight: core.D(0.5)},
		{Ticker: b, Weight: core.D(0.5)},
	}

	orders := c.CalculateCashConstrained(holdings, targets, core.D(1000), core.D(300))
	total := core.Zero
	for _, o := range orders {
		total = total.Add(o.Notional)
	}
	if total.GreaterThan(core.D(300)) {
		t.Errorf("total planned spend %s exceeds available cash 300", total)
	}
}

func TestIntegerShareRoundingFloorsBuysAndCeilsSells(t *testing.T) {
	t.Parallel()
	c := testCalc()
	a := core.NewTicker("A", "USD")
	holdings := []Holding{{Ticker: a, Quantity: core.Zero, Price: core.D(30), MarketValue: core.Zero}}
	targets := []Target{{Ticker: a, Weight: core.One}}

	// Target value 100 / price 30 = 3.33, must floor to 3 shares.
	orders := c.Calculate(holdings, targets, core.D(100))
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if !orders[0].Quantity.Equal(core.D(3)) {
		t.Errorf("buy quantity = %s, want floored to 3", orders[0].Quantity)
	}

	// Current value 300 vs target 0.5 * 400 = 200: selling 100 / 30 = 3.33
	// must ceil to 4 shares.
	holdings = []Holding{{Ticker: a, Quantity: core.D(10), Price: core.D(30), MarketValue: core.D(300)}}
	orders = c.Calculate(holdings, []Target{{Ticker: a, Weight: core.D(0.5)}}, core.D(400))
	if len(orders) != 1 || orders[0].Side != core.Sell {
		t.Fatalf("got %+v, want one sell order", orders)
	}
	if !orders[0].Quantity.Equal(core.D(4)) {
		t.Errorf("sell quantity = %s, want ceiled to 4", orders[0].Quantity)
	}
}
