package positions

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pos(symbol string, account int64, qty string, side model.Side, seq int64) model.Position {
	return model.Position{
		ExchangeID:              1,
		Symbol:                  symbol,
		AccountID:               account,
		Qty:                     d(qty),
		Side:                    side,
		LastTradeSequenceNumber: seq,
	}
}

func TestAggregate_NetsLongAndShort(t *testing.T) {
	raw := []model.Position{
		pos("ETHRUSDPERP", 1, "2", model.SideLong, 1),
		pos("ETHRUSDPERP", 2, "0.5", model.SideShort, 1),
		pos("BTCRUSDPERP", 1, "1", model.SideShort, 1),
	}
	prices := map[string]model.Price{
		"ETHRUSDPERP": {Symbol: "ETHRUSDPERP", OraclePrice: d("2000"), PoolPrice: d("1999")},
		"BTCRUSDPERP": {Symbol: "BTCRUSDPERP", PoolPrice: d("60000")},
	}

	got := Aggregate(raw, prices)

	if len(got) != 2 {
		t.Fatalf("len(Aggregate) = %d, want 2", len(got))
	}

	eth := got["ETHRUSDPERP"]
	if !eth.NetQty.Equal(d("1.5")) {
		t.Errorf("ETH NetQty = %s, want 1.5", eth.NetQty)
	}
	if eth.Side != model.SideLong {
		t.Errorf("ETH Side = %q, want %q", eth.Side, model.SideLong)
	}
	if !eth.MarkPrice.Equal(d("2000")) {
		t.Errorf("ETH MarkPrice = %s, want 2000", eth.MarkPrice)
	}
	if !eth.PositionValue.Equal(d("3000")) {
		t.Errorf("ETH PositionValue = %s, want 3000", eth.PositionValue)
	}

	btc := got["BTCRUSDPERP"]
	if !btc.NetQty.Equal(d("-1")) {
		t.Errorf("BTC NetQty = %s, want -1", btc.NetQty)
	}
	if btc.Side != model.SideShort {
		t.Errorf("BTC Side = %q, want %q", btc.Side, model.SideShort)
	}
	if !btc.MarkPrice.Equal(d("60000")) {
		t.Errorf("BTC MarkPrice = %s, want pool price 60000", btc.MarkPrice)
	}
	if !btc.PositionValue.Equal(d("60000")) {
		t.Errorf("BTC PositionValue = %s, want 60000", btc.PositionValue)
	}
}

func TestAggregate_FlatPositionIsLong(t *testing.T) {
	raw := []model.Position{
		pos("SOLRUSDPERP", 1, "3", model.SideLong, 1),
		pos("SOLRUSDPERP", 2, "3", model.SideShort, 1),
	}

	got := Aggregate(raw, nil)["SOLRUSDPERP"]
	if !got.NetQty.IsZero() {
		t.Errorf("NetQty = %s, want 0", got.NetQty)
	}
	if got.Side != model.SideLong {
		t.Errorf("Side = %q, want %q for zero net", got.Side, model.SideLong)
	}
	if !got.MarkPrice.IsZero() || !got.PositionValue.IsZero() {
		t.Errorf("MarkPrice/PositionValue = %s/%s, want 0/0 without a price", got.MarkPrice, got.PositionValue)
	}
}

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil, nil); len(got) != 0 {
		t.Errorf("Aggregate(nil) = %v, want empty", got)
	}
}

// Net quantity must equal the signed sum and side must follow its sign,
// whatever the record order.
func TestAggregate_NetQtyMatchesSignedSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"ETHRUSDPERP", "BTCRUSDPERP", "SOLRUSDPERP"}

	for round := 0; round < 50; round++ {
		var raw []model.Position
		want := map[string]decimal.Decimal{}

		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			sym := symbols[rng.Intn(len(symbols))]
			qty := decimal.New(int64(rng.Intn(1000)), -2)
			side := model.SideLong
			if rng.Intn(2) == 0 {
				side = model.SideShort
			}
			raw = append(raw, model.Position{Symbol: sym, AccountID: int64(i), Qty: qty, Side: side})

			if side == model.SideLong {
				want[sym] = want[sym].Add(qty)
			} else {
				want[sym] = want[sym].Sub(qty)
			}
		}

		rng.Shuffle(len(raw), func(i, j int) { raw[i], raw[j] = raw[j], raw[i] })
		got := Aggregate(raw, nil)

		if len(got) != len(want) {
			t.Fatalf("round %d: %d symbols, want %d", round, len(got), len(want))
		}
		for sym, net := range want {
			row := got[sym]
			if !row.NetQty.Equal(net) {
				t.Errorf("round %d %s: NetQty = %s, want %s", round, sym, row.NetQty, net)
			}
			wantSide := model.SideLong
			if net.IsNegative() {
				wantSide = model.SideShort
			}
			if row.Side != wantSide {
				t.Errorf("round %d %s: Side = %q, want %q", round, sym, row.Side, wantSide)
			}
		}
	}
}

func TestMarkPrice(t *testing.T) {
	prices := map[string]model.Price{
		"A": {OraclePrice: d("10"), PoolPrice: d("9")},
		"B": {OraclePrice: decimal.Zero, PoolPrice: d("9")},
		"C": {PoolPrice: d("7.5")},
		"D": {},
	}

	tests := []struct {
		symbol string
		want   string
	}{
		{"A", "10"},
		{"B", "9"},
		{"C", "7.5"},
		{"D", "0"},
		{"missing", "0"},
	}

	for _, tt := range tests {
		if got := MarkPrice(tt.symbol, prices); !got.Equal(d(tt.want)) {
			t.Errorf("MarkPrice(%q) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestWithMaxLeverage(t *testing.T) {
	rows := map[string]model.AggregatedPosition{
		"ETHRUSDPERP": {Symbol: "ETHRUSDPERP"},
		"XRUSDPERP":   {Symbol: "XRUSDPERP"},
	}
	markets := map[string]model.MarketDefinition{
		"ETHRUSDPERP": {Symbol: "ETHRUSDPERP", MaxLeverage: "25"},
	}

	WithMaxLeverage(rows, markets)

	if got := rows["ETHRUSDPERP"].MaxLeverage; got != "25" {
		t.Errorf("ETH MaxLeverage = %q, want %q", got, "25")
	}
	if got := rows["XRUSDPERP"].MaxLeverage; got != "" {
		t.Errorf("unknown market MaxLeverage = %q, want empty", got)
	}
}

func TestIsSignificant(t *testing.T) {
	tests := []struct {
		name       string
		prev, next string
		want       bool
	}{
		{"first price", "0", "5", true},
		{"half a basis point", "100", "100.005", false},
		{"two basis points", "100", "100.02", true},
		{"exactly threshold", "100", "100.01", false},
		{"drop", "100", "99.9", true},
		{"unchanged", "3000", "3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSignificant(d(tt.prev), d(tt.next)); got != tt.want {
				t.Errorf("IsSignificant(%s, %s) = %v, want %v", tt.prev, tt.next, got, tt.want)
			}
		})
	}
}

func TestIsSignificantWithin(t *testing.T) {
	if IsSignificantWithin(d("100"), d("100.5"), d("0.01")) {
		t.Error("0.5% move should not pass a 1% threshold")
	}
	if !IsSignificantWithin(d("100"), d("102"), d("0.01")) {
		t.Error("2% move should pass a 1% threshold")
	}
}
