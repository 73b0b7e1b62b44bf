package request

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/pkg/requestcontext"
)

func TestTraceIDEchoesValidHeader(t *testing.T) {
	var seen string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.TraceID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderTraceID, "trace-abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "trace-abc", seen)
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderTraceID))
}

func TestTraceIDGeneratesWhenMissingOrInvalid(t *testing.T) {
	for _, header := range []string{"", "has space", strings.Repeat("a", 200)} {
		h := TraceID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set(HeaderTraceID, header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		_, err := uuid.Parse(w.Header().Get(HeaderTraceID))
		assert.NoError(t, err, "header %q", header)
	}
}

func TestIdempotencyKeyEcho(t *testing.T) {
	var seen string
	h := IdempotencyKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.IdempotencyKey(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(HeaderIdempotencyKey, "key-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "key-1", seen)
	assert.Equal(t, "key-1", w.Header().Get(HeaderIdempotencyKey))

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get(HeaderIdempotencyKey))
}

func TestRecoveryWritesErrorEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"]["code"])
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := TraceID(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})))

	r := httptest.NewRequest(http.MethodPost, "/api/approvals", nil)
	r.Header.Set(HeaderTraceID, "t-1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "t-1", line["request_id"])
	assert.Equal(t, float64(http.StatusAccepted), line["status"])
	assert.Equal(t, float64(2), line["bytes"])
	assert.Equal(t, "/api/approvals", line["path"])
}
