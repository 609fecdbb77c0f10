package imgproxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"imgproxy/pkg/storage"
)

const (
	// PathPrefix is stripped from the request path to form the object key.
	PathPrefix = "/img/"
	// CacheControl lets browsers keep a response for a day and shared caches for a week.
	CacheControl = "public, max-age=86400, s-maxage=604800"

	notFoundBody = "Not Found"
)

type objectStore interface {
	Get(ctx context.Context, key string) (*storage.Object, error)
}

// FaultHandler answers a request whose store lookup failed with something other than not-found.
type FaultHandler func(w http.ResponseWriter, r *http.Request, err error)

// Outcome classifies how a request was answered.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found" // key absent from the store
	OutcomeBadPath  Outcome = "bad_path"  // no /img/ prefix or empty key
	OutcomeFault    Outcome = "fault"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithFaultHandler replaces DefaultFaultHandler.
func WithFaultHandler(f FaultHandler) Option {
	return func(h *Handler) {
		if f != nil {
			h.onFault = f
		}
	}
}

// WithOutcome registers f to be told how each request ended.
func WithOutcome(f func(Outcome)) Option {
	return func(h *Handler) {
		if f != nil {
			h.outcome = f
		}
	}
}

// Handler maps /img/<key> onto store lookups. It holds no per-request state.
type Handler struct {
	store   objectStore
	onFault FaultHandler
	outcome func(Outcome)
}

// New returns a Handler reading from store.
func New(store objectStore, opts ...Option) *Handler {
	h := &Handler{store: store, onFault: DefaultFaultHandler, outcome: func(Outcome) {}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// KeyFromPath strips PathPrefix from path. ok is false when the prefix is
// missing or nothing follows it. Slashes inside the key are kept as is.
func KeyFromPath(path string) (key string, ok bool) {
	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}
	key = path[len(PathPrefix):]
	if key == "" {
		return "", false
	}
	return key, true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := KeyFromPath(r.URL.Path)
	if !ok {
		h.outcome(OutcomeBadPath)
		writeNotFound(w)
		return
	}
	obj, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.outcome(OutcomeNotFound)
			writeNotFound(w)
			return
		}
		h.outcome(OutcomeFault)
		h.onFault(w, r, err)
		return
	}
	h.outcome(OutcomeFound)
	defer obj.Body.Close()

	hdr := w.Header()
	obj.WriteHTTPMetadata(hdr)
	if etag := httpETag(obj); etag != "" {
		hdr.Set("ETag", etag)
	}
	hdr.Set("Cache-Control", CacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

// httpETag prefers the backend's quoted form and falls back to quoting the bare etag.
func httpETag(obj *storage.Object) string {
	if obj.HTTPEtag != "" {
		return obj.HTTPEtag
	}
	return storage.QuoteETag(obj.ETag)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, notFoundBody)
}

// DefaultFaultHandler logs the store error and answers 502: the object may
// exist, so the response must not look like a cacheable 404.
func DefaultFaultHandler(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("object store get failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = io.WriteString(w, "Bad Gateway")
}
