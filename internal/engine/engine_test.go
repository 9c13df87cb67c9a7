package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
)

func TestSubmitSettlesBeforeReturning(t *testing.T) {
	led := ledger.New()
	led.Deposit("client1", market.RUB, d("1000"))
	led.Deposit("client2", market.USD, d("15"))

	e := New(led, 64)
	defer e.Close()

	buy, err := NewOrder(led, "client1", usdRub(t), SideBuy, d("15"), d("66.66"))
	require.NoError(t, err)
	require.NoError(t, e.Submit(context.Background(), buy))

	orders, err := e.AllOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)

	sell, err := NewOrder(led, "client2", usdRub(t), SideSell, d("15"), d("65"))
	require.NoError(t, err)
	require.NoError(t, e.Submit(context.Background(), sell))

	// settlement is observable the moment Submit returns
	eqDec(t, "15", led.Balance("client1", market.USD))
	eqDec(t, "999.90", led.Balance("client2", market.RUB))

	orders, err = e.AllOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAllOrdersSpansPairs(t *testing.T) {
	led := ledger.New()
	led.Deposit("client1", market.USD, d("100"))
	led.Deposit("client2", market.EUR, d("100"))

	e := New(led, 64)
	defer e.Close()

	usdRubPair := usdRub(t)
	eurRub, err := market.PairFor("EUR_RUB")
	require.NoError(t, err)

	o1, err := NewOrder(led, "client1", usdRubPair, SideSell, d("10"), d("65"))
	require.NoError(t, err)
	o2, err := NewOrder(led, "client2", eurRub, SideSell, d("20"), d("90"))
	require.NoError(t, err)

	require.NoError(t, e.Submit(context.Background(), o1))
	require.NoError(t, e.Submit(context.Background(), o2))

	orders, err := e.AllOrders()
	require.NoError(t, err)
	require.Len(t, orders, 2)

	pairs := map[string]bool{}
	for _, o := range orders {
		pairs[o.Pair.Symbol()] = true
	}
	assert.True(t, pairs["USD_RUB"])
	assert.True(t, pairs["EUR_RUB"])
}

func TestRevokeAllRefundsAndEmpties(t *testing.T) {
	led := ledger.New()
	led.Deposit("client1", market.USD, d("15"))
	led.Deposit("client2", market.USD, d("25"))

	e := New(led, 64)
	defer e.Close()

	o1, err := NewOrder(led, "client1", usdRub(t), SideSell, d("15"), d("65"))
	require.NoError(t, err)
	o2, err := NewOrder(led, "client2", usdRub(t), SideSell, d("25"), d("70"))
	require.NoError(t, err)
	require.NoError(t, e.Submit(context.Background(), o1))
	require.NoError(t, e.Submit(context.Background(), o2))

	require.NoError(t, e.RevokeAll())

	orders, err := e.AllOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)
	eqDec(t, "15", led.Balance("client1", market.USD))
	eqDec(t, "25", led.Balance("client2", market.USD))
}

func TestSubmitUnknownPair(t *testing.T) {
	led := ledger.New()
	e := New(led, 8)
	defer e.Close()

	o := &Order{Owner: "client1", Pair: market.Pair{Base: market.GBP, Quote: market.USD}, Side: SideBuy}
	assert.Error(t, e.Submit(context.Background(), o))
}

func TestCallsAfterClose(t *testing.T) {
	led := ledger.New()
	e := New(led, 8)
	e.Close()
	e.Close() // second close is a no-op

	err := e.Submit(context.Background(), &Order{Pair: usdRub(t), Side: SideBuy})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.AllOrders()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.RevokeAll(), ErrClosed)
}

// Cancellation contract: before admission the order is withdrawn and
// refunded; after admission the caller is detached and the order is still
// processed, with its funds intact.
func TestSubmitCancellationPolicy(t *testing.T) {
	led := ledger.New()
	led.Deposit("client1", market.RUB, d("1000"))
	led.Deposit("client2", market.RUB, d("1000"))

	e := New(led, 1)
	defer e.Close()

	pair := usdRub(t)

	// Stall the pair's worker on an unread snapshot reply so the queue
	// stays under our control.
	gate := command{typ: cmdOrders, resp: make(chan any)}
	e.queues[pair] <- gate
	require.Eventually(t, func() bool { return len(e.queues[pair]) == 0 },
		time.Second, time.Millisecond)

	// Admit one order into the single buffer slot and wait on it.
	buyA, err := NewOrder(led, "client1", pair, SideBuy, d("15"), d("66.66"))
	require.NoError(t, err)
	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() { errA <- e.Submit(ctxA, buyA) }()
	require.Eventually(t, func() bool { return len(e.queues[pair]) == 1 },
		time.Second, time.Millisecond)

	// Queue full + canceled context: buyB is never admitted and its
	// reservation is refunded immediately.
	buyB, err := NewOrder(led, "client2", pair, SideBuy, d("10"), d("50"))
	require.NoError(t, err)
	eqDec(t, "500", led.Balance("client2", market.RUB))
	ctxB, cancelB := context.WithCancel(context.Background())
	cancelB()
	err = e.Submit(ctxB, buyB)
	assert.ErrorIs(t, err, context.Canceled)
	eqDec(t, "1000", led.Balance("client2", market.RUB))

	// Cancel the admitted caller: it detaches with ctx.Err() but the order
	// stays live.
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	// Release the worker; the detached order is processed and rests.
	<-gate.resp
	require.Eventually(t, func() bool {
		orders, err := e.AllOrders()
		return err == nil && len(orders) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, e.RevokeAll())
	eqDec(t, "1000", led.Balance("client1", market.RUB))
}

// Many concurrent submitters against a shared engine: after everything
// settles and the books are cleared, per-currency totals across all clients
// match the deposits exactly.
func TestConcurrentSubmitConservesFunds(t *testing.T) {
	led := ledger.New()

	clients := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}
	currencies := []market.Currency{market.USD, market.RUB, market.EUR, market.JPY}
	seed := decimal.NewFromInt(1_000_000)
	for _, client := range clients {
		for _, currency := range currencies {
			led.Deposit(client, currency, seed)
		}
	}

	symbols := []string{"USD_RUB", "EUR_RUB", "USD_JPY"}
	pairs := make([]market.Pair, len(symbols))
	for i, s := range symbols {
		p, err := market.PairFor(s)
		require.NoError(t, err)
		pairs[i] = p
	}

	e := New(led, 128)
	defer e.Close()

	const perClient = 100
	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client string) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i)))
			for j := 0; j < perClient; j++ {
				pair := pairs[rng.Intn(len(pairs))]
				side := SideBuy
				if rng.Intn(2) == 0 {
					side = SideSell
				}
				// cent-granular amounts and prices so fills exercise
				// the rounding and escrow-clamping paths
				amount := decimal.New(rng.Int63n(2000)+1, -2)
				price := decimal.New(rng.Int63n(10000)+1, -2)

				o, err := NewOrder(led, client, pair, side, amount, price)
				if !assert.NoError(t, err) {
					return
				}
				if !assert.NoError(t, e.Submit(context.Background(), o)) {
					return
				}
			}
		}(i, client)
	}
	wg.Wait()

	require.NoError(t, e.RevokeAll())
	orders, err := e.AllOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)

	want := seed.Mul(decimal.NewFromInt(int64(len(clients))))
	for _, currency := range currencies {
		total := decimal.Zero
		for _, client := range clients {
			balance := led.Balance(client, currency)
			assert.False(t, balance.IsNegative(), "%s %s went negative", client, currency)
			total = total.Add(balance)
		}
		assert.True(t, total.Equal(want), "%s: want %s, got %s", currency, want, total)
	}
}
