package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"supplydash/pkg/domain"
	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/audit/mocks"
	"supplydash/pkg/requestcontext"
)

func TestRecorderRecordsRoleAsActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAppender(ctrl)

	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithRole(context.Background(), domain.RoleApprover)
	ctx = requestcontext.WithTraceID(ctx, "trace-1")
	ctx = requestcontext.WithTime(ctx, at)

	var got audit.Entry
	store.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Entry) error {
			got = e
			return nil
		})

	reg := prometheus.NewRegistry()
	metrics := audit.NewMetrics(reg)
	rec := audit.NewRecorder(store, audit.WithMetrics(metrics))
	require.NoError(t, rec.Record(ctx, "RoleSimulated", map[string]any{"role": "admin"}, "testing"))

	assert.Equal(t, "approver", got.Actor)
	assert.Equal(t, "RoleSimulated", got.Action)
	assert.Equal(t, audit.CategorySecurity, got.Category)
	assert.Equal(t, at, got.Timestamp)
	require.NotNil(t, got.Reason)
	assert.Equal(t, "testing", *got.Reason)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "admin", payload["role"])
	assert.Equal(t, "trace-1", payload["traceId"])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Recorded.WithLabelValues("RoleSimulated")))
}

func TestRecorderFailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAppender(ctrl)
	storeErr := errors.New("disk full")
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(storeErr)

	metrics := audit.NewMetrics(prometheus.NewRegistry())
	rec := audit.NewRecorder(store, audit.WithMetrics(metrics))

	err := rec.Record(context.Background(), "RoleSimulated", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
}

func TestRecorderEmptyReasonIsNull(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAppender(ctrl)
	store.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Entry) error {
			assert.Nil(t, e.Reason)
			assert.Equal(t, string(domain.DefaultRole), e.Actor)
			return nil
		})

	rec := audit.NewRecorder(store)
	require.NoError(t, rec.Record(context.Background(), "RoleSimulated", nil, ""))
}

func TestRecorderRequiresAction(t *testing.T) {
	rec := audit.NewRecorder(mocks.NewMockAppender(gomock.NewController(t)))
	assert.ErrorIs(t, rec.Record(context.Background(), "", nil, ""), audit.ErrMissingAction)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, audit.DefaultPageSize, 0},
		{"negative offset", 10, -3, 10, 0},
		{"capped", 10_000, 5, audit.MaxPageSize, 5},
		{"passthrough", 20, 40, 20, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := audit.NormalizePage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, l)
			assert.Equal(t, tt.wantOffset, o)
		})
	}
}
