// apitest exercises the Reya REST endpoints and prints an aggregated
// positions table built from a one-off fetch.
// Usage: go run ./cmd/apitest [--url https://api.reya.xyz/v2] [--wallet 0x...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/api"
	"github.com/rickgao/reya-positions/internal/config"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
)

func main() {
	baseURL := flag.String("url", config.DefaultRestURL, "REST base URL")
	wallet := flag.String("wallet", "", "wallet address to fetch positions for")
	flag.Parse()

	client := api.NewClient(*baseURL, api.WithTimeout(30*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Test 1: Market definitions
	fmt.Println("=== Testing GetMarketDefinitions ===")
	markets, err := client.GetMarketDefinitions(ctx)
	if err != nil {
		log.Fatalf("GetMarketDefinitions failed: %v", err)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })
	fmt.Printf("Fetched %d markets\n", len(markets))
	for i, m := range markets {
		if i >= 10 {
			fmt.Printf("  ... %d more\n", len(markets)-i)
			break
		}
		fmt.Printf("  %d. %s (%s/%s) max leverage: %s\n", i+1, m.Symbol, m.BaseAsset, m.QuoteAsset, m.MaxLeverage)
	}

	if *wallet == "" {
		fmt.Println("\nNo --wallet given, skipping positions.")
		return
	}
	if !config.IsValidWalletAddress(*wallet) {
		log.Fatalf("invalid wallet address %q", *wallet)
	}

	// Test 2: Wallet positions
	fmt.Printf("\n=== Testing GetWalletPositions (%s) ===\n", positions.ShortAddress(*wallet))
	raw, err := client.GetWalletPositions(ctx, *wallet)
	if err != nil {
		log.Fatalf("GetWalletPositions failed: %v", err)
	}
	fmt.Printf("Fetched %d position records\n", len(raw))
	for _, p := range raw {
		fmt.Printf("  account=%d %s %s %s (seq %d)\n",
			p.AccountID, p.Symbol, p.Side, p.Qty, p.LastTradeSequenceNumber)
	}

	// Test 3: Aggregate at entry price. The REST API has no price
	// endpoint, so live marks come only from the stream.
	fmt.Println("\n=== Aggregated (marked at average entry) ===")
	entryPrices := make(map[string]model.Price)
	for _, p := range raw {
		if _, ok := entryPrices[p.Symbol]; !ok && !p.AvgEntryPrice.IsZero() {
			entryPrices[p.Symbol] = model.Price{Symbol: p.Symbol, OraclePrice: p.AvgEntryPrice}
		}
	}

	defs := make(map[string]model.MarketDefinition, len(markets))
	for _, m := range markets {
		defs[m.Symbol] = m
	}

	agg := positions.Aggregate(raw, entryPrices)
	positions.WithMaxLeverage(agg, defs)
	rows := positions.Sort(positions.Rows(agg), positions.SortState{Field: positions.SortByValue, Direction: positions.Descending})

	total := decimal.Zero
	fmt.Printf("  %-8s %-5s %14s %14s %16s %6s\n", "SYMBOL", "SIDE", "SIZE", "PRICE", "VALUE", "LEV")
	for _, r := range rows {
		total = total.Add(r.PositionValue)
		fmt.Printf("  %-8s %-5s %14s %14s %16s %6s\n",
			positions.DisplaySymbol(r.Symbol),
			r.Side,
			positions.FormatNumber(r.Size(), 4),
			positions.FormatUSD(r.MarkPrice),
			positions.FormatUSD(r.PositionValue),
			r.MaxLeverage,
		)
	}
	fmt.Printf("  Total value: %s\n", positions.FormatUSD(total))

	fmt.Println("\n=== All tests passed! ===")
}
