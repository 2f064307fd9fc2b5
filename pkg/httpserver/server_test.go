package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/healthprobe"
	"github.com/crossvenue/predictarb/pkg/types"
)

type fakeSource struct {
	snaps []types.TaskSnapshot
}

func (f *fakeSource) List() []types.TaskSnapshot { return f.snaps }

func (f *fakeSource) Get(taskID string) (types.TaskSnapshot, bool) {
	for _, s := range f.snaps {
		if s.Config.TaskID == taskID {
			return s, true
		}
	}
	return types.TaskSnapshot{}, false
}

func newTestServer(ready bool) *Server {
	health := healthprobe.New()
	health.SetReady(ready)
	return New(&Config{
		Addr:   ":0",
		Health: health,
		Tasks: &fakeSource{snaps: []types.TaskSnapshot{
			{Config: types.TaskConfig{TaskID: "t-1"}, Status: types.StatusSubmitted},
		}},
		Logger: zap.NewNop(),
	})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(true)
	if rec := get(t, s, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := get(t, s, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	notReady := newTestServer(false)
	if rec := get(t, notReady, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while unready = %d", rec.Code)
	}
}

func TestTasksList(t *testing.T) {
	s := newTestServer(true)
	rec := get(t, s, "/tasks")
	if rec.Code != http.StatusOK {
		t.Fatalf("tasks = %d", rec.Code)
	}
	var snaps []types.TaskSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Config.TaskID != "t-1" {
		t.Fatalf("snaps = %+v", snaps)
	}
}

func TestTaskByID(t *testing.T) {
	s := newTestServer(true)
	rec := get(t, s, "/tasks/t-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("task = %d", rec.Code)
	}
	var snap types.TaskSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != types.StatusSubmitted {
		t.Fatalf("status = %s", snap.Status)
	}

	if rec := get(t, s, "/tasks/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing task = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(true)
	if rec := get(t, s, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}
