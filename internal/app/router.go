package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analysishttp "github.com/revradar/revradar/internal/analysis/http"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Analysis  *analysishttp.Handler
	StartedAt time.Time
}

// NewRouter constructs the chi.Router: liveness endpoints at the root, the
// analysis surface under /api with no-store caching.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Logger, params.Config) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	// Liveness only: never touches the database or external services.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		uptime := time.Since(startedAt).Truncate(time.Second)
		_, _ = fmt.Fprintf(w, `{"status":"ok","service":"revradar","uptime":"%s"}`, uptime)
	})
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(NoStore)
		params.Analysis.MountRoutes(r)
	})

	return r
}
