package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/dmarochkin/fxmatch/internal/config"
	"github.com/dmarochkin/fxmatch/internal/engine"
	"github.com/dmarochkin/fxmatch/internal/ledger"
	"github.com/dmarochkin/fxmatch/internal/market"
)

type depositRequest struct {
	ClientID string `json:"client_id"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type placeOrderRequest struct {
	ClientID string `json:"client_id"`
	Pair     string `json:"pair"` // "USD_RUB"
	Side     string `json:"side"` // "BUY" | "SELL"
	Amount   string `json:"amount"`
	Price    string `json:"price"`
}

type orderResponse struct {
	OrderID   string `json:"order_id"`
	ClientID  string `json:"client_id"`
	Pair      string `json:"pair"`
	Side      string `json:"side"`
	Remaining string `json:"remaining"`
	Price     string `json:"price"`
	Filled    bool   `json:"filled"`
	Resting   bool   `json:"resting"`
}

func main() {
	cfgPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	led := ledger.New()
	for _, seed := range cfg.Seed {
		currency, err := market.CurrencyFor(seed.Currency)
		if err != nil {
			log.Fatal(err)
		}
		amount, err := decimal.NewFromString(seed.Amount)
		if err != nil {
			log.Fatalf("seed amount for %s: %v", seed.Client, err)
		}
		led.Deposit(seed.Client, currency, amount)
	}

	eng := engine.New(led, cfg.QueueDepth)
	defer eng.Close()

	r := chi.NewRouter()

	// Hygiene stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Second))

	writeProblem := func(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
		reqID := middleware.GetReqID(r.Context())
		w.Header().Set("Content-Type", "application/problem+json")
		w.Header().Set("X-Request-ID", reqID)
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":      title,
			"status":     code,
			"detail":     detail,
			"instance":   r.URL.Path,
			"request_id": reqID,
		})
	}

	// POST /deposits
	r.Post("/deposits", func(w http.ResponseWriter, r *http.Request) {
		var req depositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		req.ClientID = strings.TrimSpace(req.ClientID)
		if req.ClientID == "" {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "client_id is required")
			return
		}
		currency, err := market.CurrencyFor(req.Currency)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "amount must be a positive decimal")
			return
		}
		led.Deposit(req.ClientID, currency, amount)
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	// POST /orders — create (reserving funds) and submit for matching.
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}

		order, err := toOrder(led, req)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				writeProblem(w, r, http.StatusConflict, "insufficient_funds", err.Error())
				return
			}
			writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		if err := eng.Submit(r.Context(), order); err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/orders/"+order.ID.String())
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toOrderResponse(*order))
	})

	// GET /orders — all resting orders across all pairs.
	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		orders, err := eng.AllOrders()
		if err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		out := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			out = append(out, toOrderResponse(o))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		_ = json.NewEncoder(w).Encode(out)
	})

	// DELETE /orders — revoke everything and refund.
	r.Delete("/orders", func(w http.ResponseWriter, r *http.Request) {
		if err := eng.RevokeAll(); err != nil {
			writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	// GET /clients/{id}/balances
	r.Get("/clients/{id}/balances", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		balances := led.Snapshot(id)
		out := make(map[string]string, len(balances))
		for currency, amount := range balances {
			out[string(currency)] = amount.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
		_ = json.NewEncoder(w).Encode(out)
	})

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatal(err)
	}
}

func toOrder(led *ledger.Ledger, req placeOrderRequest) (*engine.Order, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		return nil, errors.New("client_id is required")
	}
	pair, err := market.PairFor(strings.TrimSpace(req.Pair))
	if err != nil {
		return nil, err
	}
	side, err := engine.ParseSide(strings.ToUpper(strings.TrimSpace(req.Side)))
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, errors.New("amount must be a positive decimal")
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		return nil, errors.New("price must be a positive decimal")
	}
	return engine.NewOrder(led, req.ClientID, pair, side, amount, price)
}

func toOrderResponse(o engine.Order) orderResponse {
	return orderResponse{
		OrderID:   o.ID.String(),
		ClientID:  o.Owner,
		Pair:      o.Pair.Symbol(),
		Side:      string(o.Side),
		Remaining: o.Remaining.String(),
		Price:     o.Price.String(),
		Filled:    o.Remaining.IsZero(),
		Resting:   o.Remaining.IsPositive(),
	}
}
