// Package engine matches limit orders across a fixed set of currency pairs.
//
// Each pair has exactly one worker goroutine owning that pair's book; all
// mutation of a book and its resting orders happens on its worker, so
// matching needs no locks. Submissions are routed to the owning worker's
// FIFO queue and the caller blocks until its order's cycle completes.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = fmt.Errorf("engine: closed")

type Engine struct {
	led    *ledger.Ledger
	queues map[market.Pair]chan command

	mu     sync.RWMutex // guards closed; held shared across queue sends
	closed bool
	wg     sync.WaitGroup
}

// New starts one matching worker per supported pair. buffer is the depth of
// each pair's submission queue.
func New(led *ledger.Ledger, buffer int) *Engine {
	e := &Engine{
		led:    led,
		queues: make(map[market.Pair]chan command),
	}
	for _, pair := range market.Pairs() {
		cmds := make(chan command, buffer)
		e.queues[pair] = cmds
		e.wg.Add(1)
		go e.run(pair, cmds)
	}
	return e
}

func (e *Engine) run(pair market.Pair, cmds chan command) {
	defer e.wg.Done()
	b := newBook(pair)

	for cmd := range cmds {
		switch cmd.typ {
		case cmdSubmit:
			err := b.match(e.led, cmd.order)
			cmd.resp <- err
		case cmdOrders:
			cmd.resp <- b.orders()
		case cmdRevokeAll:
			b.revokeAll(e.led)
			cmd.resp <- nil
		}
	}
}

// Submit routes the order to its pair's worker and blocks until that worker
// has run the full matching cycle for it: all fills settled, the ledger and
// book updated. It is safe to call from any number of goroutines.
//
// Cancellation policy: if ctx is done before the order was admitted to its
// queue, the order is revoked (its reservation refunded) and ctx.Err() is
// returned. If ctx is done while waiting for completion, ctx.Err() is
// returned but the order stays live and is processed detached; its funds
// remain accounted for and RevokeAll refunds whatever ends up resting.
func (e *Engine) Submit(ctx context.Context, o *Order) error {
	cmds, ok := e.queues[o.Pair]
	if !ok {
		return fmt.Errorf("engine: no book for pair %s", o.Pair.Symbol())
	}

	cmd := command{typ: cmdSubmit, order: o, resp: make(chan any, 1)}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	select {
	case cmds <- cmd:
	default:
		select {
		case cmds <- cmd:
		case <-ctx.Done():
			e.mu.RUnlock()
			o.revoke(e.led)
			return ctx.Err()
		}
	}
	e.mu.RUnlock()

	select {
	case v := <-cmd.resp:
		if v == nil {
			return nil
		}
		return v.(error)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AllOrders returns a point-in-time copy of every resting order across all
// pairs. The snapshot command rides each pair's FIFO queue, so orders in
// flight ahead of it are settled or resting by the time they are reported.
func (e *Engine) AllOrders() ([]Order, error) {
	resps, err := e.broadcast(cmdOrders)
	if err != nil {
		return nil, err
	}
	var all []Order
	for _, resp := range resps {
		all = append(all, (<-resp).([]Order)...)
	}
	return all, nil
}

// RevokeAll cancels every resting order, refunding buy escrow and unfilled
// sell amounts, and empties every book.
func (e *Engine) RevokeAll() error {
	resps, err := e.broadcast(cmdRevokeAll)
	if err != nil {
		return err
	}
	for _, resp := range resps {
		<-resp
	}
	return nil
}

// broadcast enqueues one command per pair before collecting any response, so
// the per-pair snapshots are taken as close together as the queues allow.
func (e *Engine) broadcast(typ commandType) ([]chan any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	resps := make([]chan any, 0, len(e.queues))
	for _, cmds := range e.queues {
		cmd := command{typ: typ, resp: make(chan any, 1)}
		cmds <- cmd
		resps = append(resps, cmd.resp)
	}
	return resps, nil
}

// Close stops all workers after they drain their queues. Resting orders are
// not revoked; call RevokeAll first to refund them.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, cmds := range e.queues {
		close(cmds)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
