package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"inboxinspire/internal/types"
)

func TestMountRoutes_HealthEndpoint_NoAuth(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q", body.Status)
	}
}

func TestMountRoutes_V1RequiresAdminKey(t *testing.T) {
	called := false
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/owners", func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/owners", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if called {
		t.Error("handler ran without admin key")
	}
}

func TestMountRoutes_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/missing", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequestIDMiddleware_Generation(t *testing.T) {
	srv := newTestServer(t)
	var seen string
	var hasLogger bool
	handler := srv.RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
		hasLogger = types.LoggerFromContext(r.Context()) != nil
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 32 {
		t.Errorf("generated request id %q, want 32 hex chars", seen)
	}
	if w.Header().Get("X-Request-Id") != seen {
		t.Error("response header does not echo the request id")
	}
	if !hasLogger {
		t.Error("request-scoped logger not attached")
	}
}

func TestRequestIDMiddleware_Propagation(t *testing.T) {
	srv := newTestServer(t)
	var seen string
	handler := srv.RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "req-abc" || w.Header().Get("X-Request-Id") != "req-abc" {
		t.Errorf("request id = %q, header = %q", seen, w.Header().Get("X-Request-Id"))
	}
}

func TestContextTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := ContextTimeoutMiddleware(time.Minute)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("no deadline on request context")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > time.Minute {
		t.Errorf("deadline in %v, want within 1m", remaining)
	}
}

func TestMiddlewareOrder_RecovererCatchesPanics(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) {
			panic("handler exploded")
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/boom", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	req.Header.Set("X-Request-Id", "req-panic")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %s", body.Error.Code)
	}
	if body.Error.RequestID != "req-panic" {
		t.Errorf("request_id = %q", body.Error.RequestID)
	}
}

func TestMiddlewareOrder_PanicEnvelopeCarriesGeneratedRequestID(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) {
			panic("handler exploded")
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/boom", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	header := w.Header().Get("X-Request-Id")
	if header == "" || body.Error.RequestID != header {
		t.Errorf("request_id = %q, X-Request-Id = %q; want equal and non-empty", body.Error.RequestID, header)
	}
}
