// Package httpapi assembles the middleware chain and mounts every route.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"supplydash/internal/idempotency"
	"supplydash/internal/platform/metrics"
	dErrors "supplydash/pkg/domain-errors"
	"supplydash/pkg/platform/httputil"
	"supplydash/pkg/platform/middleware/admin"
	"supplydash/pkg/platform/middleware/auth"
	"supplydash/pkg/platform/middleware/metadata"
	"supplydash/pkg/platform/middleware/request"
	"supplydash/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

type Deps struct {
	Logger      *slog.Logger
	Signer      *auth.Signer
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	Idempotency *idempotency.Middleware
	TrustProxy  bool
	OpsToken    string
	Ready       map[string]ReadyCheck
	Routes      []Registrar
}

// NewRouter wires the middleware chain in order: recovery, trace id,
// idempotency key echo, request time, client metadata, access log, metrics,
// role resolution, then idempotent replay.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.TraceID)
	r.Use(request.IdempotencyKey)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(d.TrustProxy))
	r.Use(request.AccessLog(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteOK(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(d.Ready))

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireToken(d.OpsToken, d.Logger))
		if d.Registry != nil {
			r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Registry))
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Signer, d.Logger))
		if d.Idempotency != nil {
			r.Use(d.Idempotency.Handler)
		}
		for _, route := range d.Routes {
			route.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

func readyHandler(checks map[string]ReadyCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]any{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "dependencies not ready").WithDetails(failed))
			return
		}
		httputil.WriteOK(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}
