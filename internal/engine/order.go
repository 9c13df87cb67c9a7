package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
	"github.com/dmarochkin/fxmatch/internal/money"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ErrUnsupportedSide means a side outside {BUY, SELL} reached trading logic.
// It indicates a modeling bug in the caller, not a recoverable condition.
var ErrUnsupportedSide = fmt.Errorf("engine: unsupported order side")

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSide, s)
}

// Order is a live limit order. Funds backing it are reserved at creation:
// a buy holds Escrow in the pair's quote currency, a sell holds its full
// Remaining in the base currency (Escrow stays zero). Once created, an Order
// is mutated only by the worker that owns its pair's book.
type Order struct {
	ID        uuid.UUID
	Owner     string
	Pair      market.Pair
	Side      Side
	Remaining decimal.Decimal
	Price     decimal.Decimal
	Escrow    decimal.Decimal

	// seq is assigned when the order rests in a book; equal-priced resting
	// orders match oldest-first by it.
	seq uint64
}

// NewOrder reserves the required funds and returns a live order. On
// ErrInsufficientFunds nothing is reserved and no order exists.
func NewOrder(led *ledger.Ledger, owner string, pair market.Pair, side Side, amount, price decimal.Decimal) (*Order, error) {
	amount = money.Norm(amount)
	price = money.Norm(price)

	o := &Order{
		ID:        uuid.New(),
		Owner:     owner,
		Pair:      pair,
		Side:      side,
		Remaining: amount,
		Price:     price,
		Escrow:    decimal.Zero,
	}

	switch side {
	case SideBuy:
		escrow := money.Value(amount, price)
		if err := led.Reserve(owner, pair.Quote, escrow); err != nil {
			return nil, err
		}
		o.Escrow = escrow
	case SideSell:
		if err := led.Reserve(owner, pair.Base, amount); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSide, side)
	}
	return o, nil
}

// fill settles one partial execution: amount of base changes hands against
// value of quote. The buyer is credited the base amount and spends value out
// of escrow; the seller is credited value (the base was withdrawn in full at
// creation). Both legs of a deal must be given the same value, clamped to
// the buyer's escrow, so debit and credit stay equal and escrow stays ≥ 0;
// book.match does that. Returns true once the order is fully filled.
func (o *Order) fill(led *ledger.Ledger, amount, value decimal.Decimal) bool {
	if o.Remaining.IsZero() {
		return true
	}
	o.Remaining = money.Norm(o.Remaining.Sub(amount))

	switch o.Side {
	case SideBuy:
		led.Release(o.Owner, o.Pair.Base, amount)
		o.Escrow = money.Norm(o.Escrow.Sub(value))
	case SideSell:
		led.Release(o.Owner, o.Pair.Quote, value)
	}
	return o.Remaining.IsZero()
}

// revoke refunds whatever the order still holds: leftover buy escrow, or the
// unfilled base amount of a sell. Safe to call repeatedly; once everything is
// refunded it does nothing.
func (o *Order) revoke(led *ledger.Ledger) {
	switch o.Side {
	case SideBuy:
		if o.Escrow.IsPositive() {
			led.Release(o.Owner, o.Pair.Quote, o.Escrow)
			o.Escrow = decimal.Zero
		}
	case SideSell:
		if o.Remaining.IsPositive() {
			led.Release(o.Owner, o.Pair.Base, o.Remaining)
			o.Remaining = decimal.Zero
		}
	}
}
