package engine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
	"github.com/dmarochkin/fxmatch/internal/money"
)

// book holds the resting orders of one pair. It is owned exclusively by that
// pair's worker goroutine, so it needs no locking of its own.
type book struct {
	pair    market.Pair
	resting []*Order
	seq     uint64
}

func newBook(pair market.Pair) *book {
	return &book{pair: pair}
}

// match runs one matching cycle for incoming. Crossing resting orders are
// filled in price priority (best price for the aggressor's counterparty
// first, oldest first among equals); the deal price always favors the
// resting order. Whatever remains of incoming afterwards rests in the book.
func (b *book) match(led *ledger.Ledger, incoming *Order) error {
	candidates, err := b.candidates(incoming)
	if err != nil {
		return err
	}

	for _, cand := range candidates {
		if incoming.Remaining.IsZero() {
			break
		}
		dealAmount := decimal.Min(cand.Remaining, incoming.Remaining)

		// The value is rounded once per deal and clamped to the buyer's
		// escrow: summing independently rounded sub-cent fills could
		// otherwise exceed the rounded total reserved at creation.
		dealValue := money.Value(dealAmount, dealPrice(incoming, cand))
		buyer := cand
		if incoming.Side == SideBuy {
			buyer = incoming
		}
		if dealValue.GreaterThan(buyer.Escrow) {
			dealValue = buyer.Escrow
		}

		if cand.fill(led, dealAmount, dealValue) {
			cand.revoke(led)
			b.remove(cand.ID)
		}
		if incoming.fill(led, dealAmount, dealValue) {
			incoming.revoke(led)
		}
	}

	if incoming.Remaining.IsPositive() {
		b.seq++
		incoming.seq = b.seq
		b.resting = append(b.resting, incoming)
	}
	return nil
}

// candidates selects and orders the resting orders incoming may trade with:
// different owner, opposite side, crossing price.
func (b *book) candidates(incoming *Order) ([]*Order, error) {
	if incoming.Side != SideBuy && incoming.Side != SideSell {
		return nil, ErrUnsupportedSide
	}

	var out []*Order
	for _, cand := range b.resting {
		if cand.Owner == incoming.Owner || cand.Side == incoming.Side {
			continue
		}
		if !crosses(incoming, cand) {
			continue
		}
		out = append(out, cand)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Price, out[j].Price
		if !pi.Equal(pj) {
			if incoming.Side == SideBuy {
				return pi.LessThan(pj)
			}
			return pi.GreaterThan(pj)
		}
		return out[i].seq < out[j].seq
	})
	return out, nil
}

// crosses reports whether the candidate's limit price is compatible with the
// incoming order's.
func crosses(incoming, cand *Order) bool {
	if incoming.Side == SideBuy {
		return cand.Price.LessThanOrEqual(incoming.Price)
	}
	return cand.Price.GreaterThanOrEqual(incoming.Price)
}

// dealPrice picks the execution price; price improvement goes to the
// aggressor's counterparty, so the resting order's price wins the spread.
func dealPrice(incoming, cand *Order) decimal.Decimal {
	if incoming.Side == SideBuy {
		return decimal.Min(incoming.Price, cand.Price)
	}
	return decimal.Max(incoming.Price, cand.Price)
}

func (b *book) remove(id uuid.UUID) {
	for i, o := range b.resting {
		if o.ID == id {
			b.resting = append(b.resting[:i], b.resting[i+1:]...)
			return
		}
	}
}

// revokeAll refunds every resting order and empties the book.
func (b *book) revokeAll(led *ledger.Ledger) {
	for _, o := range b.resting {
		o.revoke(led)
	}
	b.resting = b.resting[:0]
}

// orders returns value copies of the resting orders.
func (b *book) orders() []Order {
	out := make([]Order, 0, len(b.resting))
	for _, o := range b.resting {
		out = append(out, *o)
	}
	return out
}
