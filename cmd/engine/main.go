package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/dmarochkin/fxmatch/internal/engine"
	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
)

func main() {
	ctx := context.Background()

	led := ledger.New()
	led.Deposit("alice", market.RUB, decimal.NewFromInt(1000))
	led.Deposit("bob", market.USD, decimal.NewFromInt(15))

	eng := engine.New(led, 64)
	defer eng.Close()

	pair, err := market.PairFor("USD_RUB")
	if err != nil {
		log.Fatal(err)
	}

	// Maker: alice wants to BUY 15 USD, paying up to 66.66 RUB each.
	buy, err := engine.NewOrder(led, "alice", pair, engine.SideBuy,
		decimal.NewFromInt(15), decimal.RequireFromString("66.66"))
	if err != nil {
		log.Fatal(err)
	}

	// Taker: bob SELLs 15 USD at 65; the deal executes at alice's 66.66.
	sell, err := engine.NewOrder(led, "bob", pair, engine.SideSell,
		decimal.NewFromInt(15), decimal.NewFromInt(65))
	if err != nil {
		log.Fatal(err)
	}

	// submit the buy first so it rests
	if err := eng.Submit(ctx, buy); err != nil {
		log.Fatal(err)
	}
	if err := eng.Submit(ctx, sell); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("alice: %v\n", led.Snapshot("alice"))
	fmt.Printf("bob:   %v\n", led.Snapshot("bob"))
}
