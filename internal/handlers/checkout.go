package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

const (
	maxCheckoutBodySize = 32 * 1024

	defaultCheckoutRateLimit  = 5
	defaultCheckoutRateWindow = time.Minute
)

// CheckoutHandlers turns the session cart into an order. Checkout attempts are
// rate limited per session to keep a stuck client from burning order numbers.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	limiter  rateLimiter
}

// CheckoutOption customises checkout handler construction.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimit overrides the per-session attempt limit. A zero limit
// or window disables rate limiting.
func WithCheckoutRateLimit(limit int, window time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		checkout: checkout,
		limiter:  newSimpleRateLimiter(defaultCheckoutRateLimit, defaultCheckoutRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
}

type checkoutRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Address    string `json:"address"`
	City       string `json:"city"`
	CustomCity string `json:"customCity"`
	Notes      string `json:"notes"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts; retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		SessionID: sessionID,
		Customer: services.OrderCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Address:    req.Address,
		City:       services.DeliveryCity(req.City),
		CustomCity: req.CustomCity,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutConflict):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_conflict", "checkout conflicted; retry", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}
