// Package pricing provides the HTTP handlers and business logic for
// storing model specs, pricing contracts against them, and querying the
// resulting quotes.
//
// Reported prices use shopspring/decimal, never float64.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atmx/pricing-engine/internal/budget"
	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/exercise"
	"github.com/atmx/pricing-engine/internal/metrics"
	"github.com/atmx/pricing-engine/internal/model"
	"github.com/atmx/pricing-engine/internal/option"
	"github.com/atmx/pricing-engine/internal/sim"
	"github.com/atmx/pricing-engine/internal/store"
)

// Options tunes the pricing runs the service performs.
type Options struct {
	// Workers bounds simulation and valuation goroutines per quote; <= 0
	// means GOMAXPROCS.
	Workers int
	// DiscountRate is the continuously compounded rate applied per step.
	DiscountRate float64
	// Timeout caps a single pricing run; 0 means no cap beyond the
	// request context.
	Timeout time.Duration
}

// Service handles model and quote operations. Pricing runs execute
// concurrently; the work gate bounds how many grid cells are in flight.
type Service struct {
	store store.Store
	gate  *budget.Gate
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
	opts  Options
}

// NewService creates a new pricing service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *budget.WorkLimiter, hub *WSHub, opts Options) *Service {
	return &Service{
		store: st,
		gate:  budget.NewGate(limiter),
		wsHub: hub,
		opts:  opts,
	}
}

// --- Request/Response types ---

// CreateModelRequest is the JSON body for model creation.
type CreateModelRequest struct {
	Name   string     `json:"name"`
	Kind   string     `json:"kind"` // canonical kind or alias (gbm, ou, merton, heston, bates)
	Params sim.Params `json:"params"`
}

// QuoteRequest is the JSON body for POST /quotes. ModelIDs and
// InitialPrices are index-aligned, one entry per underlying.
type QuoteRequest struct {
	ModelIDs      []string          `json:"model_ids"`
	InitialPrices []float64         `json:"initial_prices"`
	Contract      contract.Contract `json:"contract"`
	T             float64           `json:"t"`
	Paths         int               `json:"paths"`
	Steps         int               `json:"steps"`
	Seed          *uint64           `json:"seed,omitempty"` // omitted → time-seeded
}

// --- HTTP Handlers ---

// CreateModel handles POST /api/v1/models
func (s *Service) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	kind, err := sim.ParseKind(req.Kind)
	if err != nil {
		writeErr(w, err)
		return
	}
	spec := &model.ModelSpec{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Kind:      kind,
		Params:    req.Params,
		CreatedAt: time.Now().UTC(),
	}
	if spec.Name == "" {
		spec.Name = string(kind)
	}
	if _, err := spec.Build(); err != nil {
		writeErr(w, err)
		return
	}

	if err := s.store.CreateModel(r.Context(), spec); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	metrics.ModelsCreated.WithLabelValues(string(kind)).Inc()

	slog.Info("model created",
		"id", spec.ID,
		"name", spec.Name,
		"kind", kind,
	)

	writeJSON(w, http.StatusCreated, spec)
}

// GetModel handles GET /api/v1/models/{modelID}
func (s *Service) GetModel(w http.ResponseWriter, r *http.Request) {
	spec, err := s.store.GetModel(r.Context(), chi.URLParam(r, "modelID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// ListModels handles GET /api/v1/models
// Returns all model specs, optionally filtered by ?kind=<kind or alias>.
func (s *Service) ListModels(w http.ResponseWriter, r *http.Request) {
	specs, err := s.store.ListModels(r.Context())
	if err != nil {
		writeError(w, "failed to list models", http.StatusInternalServerError)
		return
	}

	if tok := r.URL.Query().Get("kind"); tok != "" {
		kind, err := sim.ParseKind(tok)
		if err != nil {
			writeErr(w, err)
			return
		}
		var filtered []model.ModelSpec
		for _, m := range specs {
			if m.Kind == kind {
				filtered = append(filtered, m)
			}
		}
		specs = filtered
	}
	if specs == nil {
		specs = []model.ModelSpec{}
	}
	writeJSON(w, http.StatusOK, specs)
}

// ListModelQuotes handles GET /api/v1/models/{modelID}/quotes
func (s *Service) ListModelQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID := chi.URLParam(r, "modelID")

	if _, err := s.store.GetModel(ctx, modelID); err != nil {
		writeErr(w, err)
		return
	}
	quotes, err := s.store.ListQuotesByModel(ctx, modelID)
	if err != nil {
		writeError(w, "failed to list quotes", http.StatusInternalServerError)
		return
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// GetQuote handles GET /api/v1/quotes/{quoteID}
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListQuotes handles GET /api/v1/quotes?ticker=<ticker>
func (s *Service) ListQuotes(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}
	if _, err := contract.ParseTicker(ticker); err != nil {
		writeErr(w, err)
		return
	}

	quotes, err := s.store.ListQuotesByTicker(r.Context(), ticker)
	if err != nil {
		writeError(w, "failed to list quotes", http.StatusInternalServerError)
		return
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// CreateQuote handles POST /api/v1/quotes
// Resolves the models, prices the contract by simulation, and records the
// quote.
func (s *Service) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	terms, err := req.Contract.Resolve()
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(req.ModelIDs) == 0 {
		writeError(w, "model_ids is required", http.StatusBadRequest)
		return
	}
	if len(req.InitialPrices) != len(req.ModelIDs) {
		writeError(w, "initial_prices must have one entry per model", http.StatusBadRequest)
		return
	}
	if n := terms.Family.Assets(); n > 0 && len(req.ModelIDs) != n {
		writeError(w, string(terms.Family)+" contracts price exactly "+plural(n, "model"), http.StatusBadRequest)
		return
	}
	run := option.Run{
		T:             req.T,
		Paths:         req.Paths,
		Steps:         req.Steps,
		Style:         terms.Style,
		ExerciseSteps: terms.Schedule,
	}
	if err := run.Validate(); err != nil {
		writeErr(w, err)
		return
	}
	ticker, err := req.Contract.Ticker()
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx := r.Context()
	models := make([]sim.Model, len(req.ModelIDs))
	for i, id := range req.ModelIDs {
		spec, err := s.store.GetModel(ctx, id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if models[i], err = spec.Build(); err != nil {
			writeErr(w, err)
			return
		}
	}

	// --- Work budget ---
	cost := budget.Cost(len(models), req.Paths, req.Steps)
	release, err := s.gate.Acquire(cost)
	if err != nil {
		metrics.BudgetRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeErr(w, err)
		return
	}
	metrics.InFlightCells.Set(float64(s.gate.InFlight()))
	defer func() {
		release()
		metrics.InFlightCells.Set(float64(s.gate.InFlight()))
	}()

	// --- Pricing ---
	seed := uint64(time.Now().UnixNano())
	if req.Seed != nil {
		seed = *req.Seed
	}
	pricer := option.NewPricer(
		&sim.Simulator{Entropy: sim.Seed(seed), Workers: s.opts.Workers},
		exercise.NewEngine(s.opts.DiscountRate, s.opts.Workers),
	)
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	price, err := pricers[terms.Family](ctx, pricer, pricingInput{
		models: models,
		s0s:    req.InitialPrices,
		terms:  terms,
		run:    run,
	})
	elapsed := time.Since(start)
	if err != nil {
		metrics.QuoteFailures.WithLabelValues(failureReason(err)).Inc()
		slog.Warn("quote failed",
			"ticker", ticker,
			"paths", req.Paths,
			"steps", req.Steps,
			"err", err,
		)
		writeErr(w, err)
		return
	}

	metrics.QuotesTotal.WithLabelValues(string(terms.Family), terms.Style.String()).Inc()
	metrics.QuoteLatency.WithLabelValues(string(terms.Family)).Observe(elapsed.Seconds())
	metrics.SimulatedCells.Add(float64(cost))

	// Create immutable quote record.
	quote := &model.Quote{
		ID:            uuid.New().String(),
		Ticker:        ticker,
		Family:        terms.Family,
		ModelIDs:      req.ModelIDs,
		Contract:      req.Contract,
		InitialPrices: req.InitialPrices,
		Maturity:      req.T,
		Paths:         req.Paths,
		Steps:         req.Steps,
		Seed:          &seed,
		DiscountRate:  s.opts.DiscountRate,
		Price:         model.RoundPrice(price),
		DurationMS:    elapsed.Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}
	quote.Contract.Family = terms.Family

	if err := s.store.InsertQuote(r.Context(), quote); err != nil {
		writeError(w, "failed to record quote", http.StatusInternalServerError)
		return
	}

	slog.Info("quote priced",
		"quote_id", quote.ID,
		"ticker", ticker,
		"family", terms.Family,
		"style", terms.Style.String(),
		"paths", req.Paths,
		"steps", req.Steps,
		"price", quote.Price.String(),
		"duration_ms", quote.DurationMS,
	)

	// Broadcast the new quote via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "quote_priced",
			QuoteID:    quote.ID,
			Ticker:     ticker,
			Family:     string(terms.Family),
			Price:      quote.Price.String(),
			Paths:      req.Paths,
			Steps:      req.Steps,
			DurationMS: quote.DurationMS,
		})
	}

	writeJSON(w, http.StatusCreated, quote)
}

// --- Error mapping ---

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, sim.ErrInvalidArgument),
		errors.Is(err, contract.ErrInvalidTicker),
		errors.Is(err, contract.ErrInvalidFamily):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, option.ErrNonFinitePrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, budget.ErrRequestTooLarge),
		errors.Is(err, budget.ErrCapacityExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func rejectionReason(err error) string {
	if errors.Is(err, budget.ErrRequestTooLarge) {
		return "request_too_large"
	}
	return "capacity"
}

func failureReason(err error) string {
	switch errorStatus(err) {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusUnprocessableEntity:
		return "non_finite"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal"
}

// writeErr writes err with the status errorStatus assigns to it.
func writeErr(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeError(w, msg, status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
