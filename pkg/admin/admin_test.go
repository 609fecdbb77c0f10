package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"imgproxy/pkg/cache"
)

type fixedStats cache.Stats

func (f fixedStats) Stats() cache.Stats { return cache.Stats(f) }

func TestHealthHandler(t *testing.T) {
	ready := false
	mux := NewMux(Info{Version: "1.2.3", Address: ":8080", StoreBackend: "memory"}, func() bool { return ready }, nil, nil)

	get := func() map[string]any {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/health", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("health expected 200, got %d", rr.Code)
		}
		var out map[string]any
		if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}
	if out := get(); out["ready"] != false || out["version"] != "1.2.3" || out["store"] != "memory" {
		t.Fatalf("unexpected health: %v", out)
	}
	ready = true
	if out := get(); out["ready"] != true {
		t.Fatalf("expected ready=true, got %v", out["ready"])
	}
}

func TestVersionHandler_GetOnly(t *testing.T) {
	h := NewVersionHandler("v9")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/version", nil))
	var out map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["version"] != "v9" {
		t.Fatalf("version %q", out["version"])
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/version", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST version expected 405, got %d", rr.Code)
	}
}

func TestCacheStatsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewCacheStatsHandler(fixedStats{Hits: 3, Misses: 1}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))
	var st cache.Stats
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Hits != 3 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	rr = httptest.NewRecorder()
	NewCacheStatsHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("nil source expected 200, got %d", rr.Code)
	}
}

func TestMux_ServesMetrics(t *testing.T) {
	mux := NewMux(Info{}, nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("imgproxy_up 1"))
	}))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "imgproxy_up 1" {
		t.Fatalf("metrics: %d %q", rr.Code, rr.Body.String())
	}
}
