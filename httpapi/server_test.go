package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/embertrace/engine/engine"
	"github.com/embertrace/engine/model"
	"github.com/embertrace/engine/storage/sqlite"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "engine-httpapi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}

	eng, err := engine.New(store, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	return New(eng, zap.NewNop()), eng
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0, 50); got != 0 {
		t.Errorf("clampLimit(0, 50) = %d, want 0 (explicit zero means return nothing)", got)
	}
	if got := clampLimit(-5, 50); got != 50 {
		t.Errorf("clampLimit(-5, 50) = %d, want 50", got)
	}
	if got := clampLimit(20, 50); got != 20 {
		t.Errorf("clampLimit(20, 50) = %d, want 20", got)
	}
	if got := clampLimit(999999, 50); got != maxQueryLimit {
		t.Errorf("clampLimit(999999, 50) = %d, want %d", got, maxQueryLimit)
	}
}

func TestHandleQueryEventsLimitZeroReturnsNothing(t *testing.T) {
	s, eng := newTestServer(t)

	key, err := eng.InsertInstance(model.NewInstance{ID: 1})
	if err != nil {
		t.Fatalf("InsertInstance: %v", err)
	}
	if err := eng.InsertEvent(model.NewEvent{InstanceKey: key, Name: "hello", Level: int32(model.LevelInfo)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/events?limit=0", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var views []model.EventView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("views = %+v, want none for limit=0", views)
	}
}

func TestHandleQueryEventsEndToEnd(t *testing.T) {
	s, eng := newTestServer(t)

	key, err := eng.InsertInstance(model.NewInstance{ID: 1})
	if err != nil {
		t.Fatalf("InsertInstance: %v", err)
	}
	if err := eng.InsertEvent(model.NewEvent{InstanceKey: key, Name: "hello", Level: int32(model.LevelInfo)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var views []model.EventView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(views) != 1 || views[0].Name != "hello" {
		t.Fatalf("views = %+v", views)
	}
}

func TestHandleQueryEventsRejectsBadFilter(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/events?filter=%23level%3Abogus", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCorsMiddlewareHandlesPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header: %v", rec.Header())
	}
}

func TestHandleQueryStats(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
