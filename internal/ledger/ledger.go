// Package ledger tracks per-client, per-currency balances with atomic
// reserve/release semantics.
package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dmarochkin/fxmatch/internal/market"
	"github.com/dmarochkin/fxmatch/internal/money"
)

// ErrInsufficientFunds is returned by Reserve when the available balance
// does not cover the requested amount. Nothing is mutated in that case.
var ErrInsufficientFunds = fmt.Errorf("ledger: insufficient funds")

type cellKey struct {
	client   string
	currency market.Currency
}

// cell is one (client, currency) balance. Each cell carries its own lock so
// unrelated clients and currencies never contend with each other.
type cell struct {
	mu        sync.Mutex
	available decimal.Decimal
}

type Ledger struct {
	mu    sync.Mutex // guards the cells map only, never a balance
	cells map[cellKey]*cell
}

func New() *Ledger {
	return &Ledger{cells: make(map[cellKey]*cell)}
}

func (l *Ledger) cell(client string, currency market.Currency) *cell {
	key := cellKey{client, currency}
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cells[key]
	if !ok {
		c = &cell{available: decimal.Zero}
		l.cells[key] = c
	}
	return c
}

// Deposit credits the client's balance unconditionally.
func (l *Ledger) Deposit(client string, currency market.Currency, amount decimal.Decimal) {
	amount = money.Norm(amount)
	c := l.cell(client, currency)
	c.mu.Lock()
	c.available = money.Norm(c.available.Add(amount))
	c.mu.Unlock()
}

// Release returns previously reserved funds to the client. It is the same
// unconditional credit as Deposit; the separate name marks call sites that
// undo a reservation rather than add new money.
func (l *Ledger) Release(client string, currency market.Currency, amount decimal.Decimal) {
	l.Deposit(client, currency, amount)
}

// Reserve withdraws amount from the client's balance, or returns
// ErrInsufficientFunds without touching anything. The check and the
// subtraction are atomic with respect to concurrent operations on the same
// (client, currency) cell; other cells are never blocked.
func (l *Ledger) Reserve(client string, currency market.Currency, amount decimal.Decimal) error {
	amount = money.Norm(amount)
	c := l.cell(client, currency)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available.LessThan(amount) {
		return fmt.Errorf("%w: client %s needs %s %s, has %s",
			ErrInsufficientFunds, client, amount, currency, c.available)
	}
	c.available = money.Norm(c.available.Sub(amount))
	return nil
}

// Snapshot returns a copy of the client's balances. Each balance reflects an
// atomic point-in-time read of its cell; the map is safe to retain.
func (l *Ledger) Snapshot(client string) map[market.Currency]decimal.Decimal {
	l.mu.Lock()
	cells := make(map[market.Currency]*cell)
	for key, c := range l.cells {
		if key.client == client {
			cells[key.currency] = c
		}
	}
	l.mu.Unlock()

	out := make(map[market.Currency]decimal.Decimal, len(cells))
	for currency, c := range cells {
		c.mu.Lock()
		out[currency] = c.available
		c.mu.Unlock()
	}
	return out
}

// Balance returns the client's balance in one currency (zero if untouched).
// It is a pure read: no cell is created for a never-seen combination.
func (l *Ledger) Balance(client string, currency market.Currency) decimal.Decimal {
	l.mu.Lock()
	c, ok := l.cells[cellKey{client, currency}]
	l.mu.Unlock()
	if !ok {
		return decimal.Zero
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}
