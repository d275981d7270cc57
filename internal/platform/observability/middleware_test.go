package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestRequestCounterInitialised(t *testing.T) {
	if requestCounter == nil {
		t.Fatal("expected the request counter instrument to be created")
	}
}

func TestRequestLoggerMiddlewareCompletesRequest(t *testing.T) {
	handler := InjectLoggerMiddleware(zap.NewNop())(
		RequestLoggerMiddleware()(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}),
		),
	)

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 through the middleware chain, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected the response body to pass through")
	}
}
