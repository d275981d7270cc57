package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlas-naturals/api/internal/platform/auth"
)

var fixedTime = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newCheckoutRequest(sessionID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if sessionID != "" {
		req = req.WithContext(auth.WithSessionID(req.Context(), sessionID))
	}
	return req
}

func TestMiddlewareMissingHeader(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))

	handlerCalled := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	})

	rec := httptest.NewRecorder()
	middleware(next).ServeHTTP(rec, newCheckoutRequest("session-7", "", `{"city":"rabat"}`))

	if handlerCalled {
		t.Fatal("handler should not run without the idempotency key header")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "idempotency_key_required")
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderNumber":"CMD-2026-000042"}`))
	}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, newCheckoutRequest("session-7", "retry-1", `{"city":"rabat"}`))

	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if rec1.Code != http.StatusCreated {
		t.Fatalf("unexpected first response status %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, newCheckoutRequest("session-7", "retry-1", `{"city":"rabat"}`))

	if calls != 1 {
		t.Fatalf("retry must not re-run the handler, got %d calls", calls)
	}
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", rec2.Code)
	}
	if rec2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected the replay marker header")
	}
	if rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("expected replayed body %s, got %s", rec1.Body.String(), rec2.Body.String())
	}
}

func TestMiddlewareScopesKeysToSession(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, newCheckoutRequest("session-a", "shared-key", `{"city":"rabat"}`))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, newCheckoutRequest("session-b", "shared-key", `{"city":"rabat"}`))

	if calls != 2 {
		t.Fatalf("distinct sessions reusing a key must both run, got %d calls", calls)
	}
	if rec2.Header().Get(replayHeaderName) == "true" {
		t.Fatal("second session must not receive a replay")
	}
}

func TestMiddlewareKeyReuseWithDifferentBodyConflicts(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, newCheckoutRequest("session-7", "same-key", `{"city":"rabat"}`))
	if rec1.Code != http.StatusCreated {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, newCheckoutRequest("session-7", "same-key", `{"city":"casablanca"}`))

	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for fingerprint mismatch, got %d", rec2.Code)
	}
	assertErrorCode(t, rec2.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddlewarePendingReservationConflicts(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))
	handler := middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run while the reservation is pending")
	}))

	req := newCheckoutRequest("session-7", "pending-key", `{"city":"rabat"}`)
	body, err := readAndReplayBody(req)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	identity := requesterIdentity(req.Context())
	fingerprint := requestFingerprint(req, body, identity)
	scoped := scopedKey("pending-key", identity)
	if _, err := store.Reserve(req.Context(), scoped, fingerprint, fixedTime, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a pending reservation, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddlewareSaveFailureReleasesReservation(t *testing.T) {
	store := &stubIdempotencyStore{failSave: true}
	middleware := Middleware(store, WithClock(func() time.Time { return fixedTime }))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	middleware(next).ServeHTTP(rec, newCheckoutRequest("session-7", "fail-key", `{"city":"rabat"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	assertErrorCode(t, rec.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("expected the reservation to be released after a save failure")
	}
}

func TestMiddlewareIgnoresUnguardedMethods(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithMethods(http.MethodPost))

	handlerCalled := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("GET must pass through without an idempotency key")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type stubIdempotencyStore struct {
	failSave bool
	released bool
}

func (s *stubIdempotencyStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubIdempotencyStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubIdempotencyStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *stubIdempotencyStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorCode(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}
