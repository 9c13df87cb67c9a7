// Package market enumerates the supported currencies and currency pairs.
// The tables are fixed at compile time and never mutated.
package market

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCurrency = errors.New("market: unknown currency")
	ErrUnknownPair     = errors.New("market: unknown pair")
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	RUB Currency = "RUB"
	JPY Currency = "JPY"
	GBP Currency = "GBP"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	CHF Currency = "CHF"
	SEK Currency = "SEK"
)

// Pair is one tradable instrument: prices are quoted in Quote per unit of Base.
type Pair struct {
	Base  Currency
	Quote Currency
}

func (p Pair) Symbol() string {
	return string(p.Base) + "_" + string(p.Quote)
}

var pairs = []Pair{
	{USD, EUR},
	{USD, RUB},
	{USD, JPY},
	{USD, GBP},
	{USD, AUD},
	{USD, CAD},
	{USD, CHF},
	{USD, SEK},
	{EUR, RUB},
	{EUR, GBP},
	{EUR, CHF},
	{RUB, JPY},
}

var bySymbol = func() map[string]Pair {
	m := make(map[string]Pair, len(pairs))
	for _, p := range pairs {
		m[p.Symbol()] = p
	}
	return m
}()

// Pairs returns all supported instruments.
func Pairs() []Pair {
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	return out
}

// Currencies returns all supported currencies.
func Currencies() []Currency {
	return []Currency{USD, EUR, RUB, JPY, GBP, AUD, CAD, CHF, SEK}
}

// CurrencyFor resolves a code like "RUB" to its Currency.
func CurrencyFor(code string) (Currency, error) {
	for _, c := range Currencies() {
		if string(c) == code {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// PairFor resolves a symbol like "USD_RUB" to its Pair.
func PairFor(symbol string) (Pair, error) {
	p, ok := bySymbol[symbol]
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownPair, symbol)
	}
	return p, nil
}
