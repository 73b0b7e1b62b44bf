package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "supplydash/pkg/domain-errors"
	"supplydash/pkg/platform/httputil"
	"supplydash/pkg/requestcontext"
)

const (
	HeaderReplayed = "Idempotent-Replayed"

	maxCapturedBody = 1 << 20

	defaultPendingTTL = time.Minute
	storeTimeout      = 3 * time.Second
)

type Middleware struct {
	store      Store
	ttl        time.Duration
	pendingTTL time.Duration
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// WithPendingTTL bounds how long an unfinished request holds its key.
func WithPendingTTL(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.pendingTTL = d
		}
	}
}

func New(store Store, ttl time.Duration, opts ...Option) *Middleware {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &Middleware{store: store, ttl: ttl, pendingTTL: defaultPendingTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler replays the first completed response of a POST carrying an
// Idempotency-Key. Keys are scoped to the caller's role, method and path.
// Store failures are logged and the request runs normally.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := requestcontext.IdempotencyKey(ctx)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody+1))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		storeKey := scopedKey(key, string(requestcontext.Role(ctx)), r.Method, r.URL.Path)
		fingerprint := fingerprintOf(body)

		rec, err := m.store.Begin(ctx, storeKey, m.pendingTTL)
		switch {
		case errors.Is(err, ErrInFlight):
			m.metrics.IncConflict()
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a request with this idempotency key is in progress"))
			return
		case err != nil:
			m.metrics.IncStoreError()
			m.logger.WarnContext(ctx, "idempotency store unavailable, continuing without replay",
				"request_id", requestcontext.TraceID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		case rec != nil:
			if rec.Fingerprint != fingerprint {
				m.metrics.IncConflict()
				httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "idempotency key reused with a different body"))
				return
			}
			m.metrics.IncReplayed()
			replay(w, rec)
			return
		}

		rw := &capture{ResponseWriter: w, status: http.StatusOK}
		completed := false
		defer func() {
			if completed {
				return
			}
			// Panics and server errors release the key so a retry can run.
			sctx, cancel := m.storeContext(ctx)
			defer cancel()
			if err := m.store.Abandon(sctx, storeKey); err != nil {
				m.logger.WarnContext(ctx, "failed to release idempotency key",
					"request_id", requestcontext.TraceID(ctx),
					"error", err,
				)
			}
		}()

		next.ServeHTTP(rw, r)

		if rw.status >= http.StatusInternalServerError || rw.overflow {
			return
		}
		// The response is already committed; a client disconnect must not
		// leave the key pending.
		sctx, cancel := m.storeContext(ctx)
		err = m.store.Complete(sctx, storeKey, Record{
			Fingerprint: fingerprint,
			Status:      rw.status,
			ContentType: rw.Header().Get("Content-Type"),
			Body:        rw.buf.Bytes(),
		}, m.ttl)
		cancel()
		if err != nil {
			m.metrics.IncStoreError()
			m.logger.WarnContext(ctx, "failed to store idempotent response",
				"request_id", requestcontext.TraceID(ctx),
				"error", err,
			)
			return
		}
		completed = true
	})
}

func (m *Middleware) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func scopedKey(key, role, method, path string) string {
	sum := sha256.Sum256([]byte(role + " " + method + " " + path + " " + key))
	return hex.EncodeToString(sum[:])
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type capture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
	overflow    bool
}

func (c *capture) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *capture) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.buf.Len()+len(p) > maxCapturedBody {
		c.overflow = true
	} else {
		c.buf.Write(p)
	}
	return c.ResponseWriter.Write(p)
}
