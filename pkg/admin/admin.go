// Package admin serves the read-only control-plane endpoints and Prometheus
// metrics on the admin listener, away from the public image surface.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"imgproxy/pkg/cache"
)

// Info describes the running process for /admin/health.
type Info struct {
	Version      string
	Address      string
	AdminAddress string
	StoreBackend string
	CacheBackend string
}

// StatsSource is anything that reports cache counters.
type StatsSource interface {
	Stats() cache.Stats
}

// NewHealthHandler returns GET /admin/health handler.
// It reports liveness and readiness along with version and listen addresses.
func NewHealthHandler(info Info, ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		isReady := ready != nil && ready()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"ready":     isReady,
			"version":   info.Version,
			"address":   info.Address,
			"admin":     info.AdminAddress,
			"store":     info.StoreBackend,
			"cache":     info.CacheBackend,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// NewVersionHandler returns GET /admin/version handler.
func NewVersionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// NewCacheStatsHandler returns GET /admin/cache/stats handler.
// With no cache configured it answers zero counters.
func NewCacheStatsHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var st cache.Stats
		if src != nil {
			st = src.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	}
}

// NewMux wires all admin endpoints. metrics, when non-nil, is served at /metrics.
func NewMux(info Info, ready func() bool, stats StatsSource, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.Handle("/admin/health", NewHealthHandler(info, ready))
	mux.Handle("/admin/version", NewVersionHandler(info.Version))
	mux.Handle("/admin/cache/stats", NewCacheStatsHandler(stats))
	return mux
}
