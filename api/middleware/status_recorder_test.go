package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/monkelabs/monke-backend/pkg/logger"
)

func TestStatusRecorderCapturesExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w}

	rec.WriteHeader(http.StatusNotFound)

	if rec.status != http.StatusNotFound {
		t.Fatalf("expected recorded status 404, got %d", rec.status)
	}
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected downstream status 404, got %d", w.Code)
	}
}

func TestStatusRecorderDefaultsToOKOnWrite(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w}

	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if rec.status != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", rec.status)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("expected body passthrough, got %q", w.Body.String())
	}
}

func TestLoggingPassesResponseThrough(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teapots", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", w.Code)
	}
	if w.Body.String() != "short and stout" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
