package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/internal/events/emit"
	dErrors "supplydash/pkg/domain-errors"
)

func TestDraftRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		items   []emit.DraftItem
		wantErr bool
	}{
		{"valid", []emit.DraftItem{{SKU: "A", Quantity: 1}}, false},
		{"empty", nil, true},
		{"missing sku", []emit.DraftItem{{SKU: " ", Quantity: 1}}, true},
		{"zero quantity", []emit.DraftItem{{SKU: "A"}}, true},
		{"negative quantity", []emit.DraftItem{{SKU: "A", Quantity: -2}}, true},
		{"too many", make([]emit.DraftItem, maxDraftSize+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&DraftRequest{Items: tt.items}).Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDenyRequest_Validate(t *testing.T) {
	req := &DenyRequest{Reason: "  late  "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "late", req.Reason)

	assert.Error(t, (&DenyRequest{Reason: strings.Repeat("x", maxReasonLen+1)}).Validate())
}

func TestForecastRequests_Validate(t *testing.T) {
	start := &ForecastRunRequest{}
	require.NoError(t, start.Validate())
	assert.NotNil(t, start.Params)

	assert.Error(t, (&ForecastCompleteRequest{}).Validate())
	assert.NoError(t, (&ForecastCompleteRequest{Result: map[string]any{}}).Validate())
}

func TestParseIDs(t *testing.T) {
	_, err := parseApprovalID(" ")
	assert.Error(t, err)
	_, err = parseApprovalID(strings.Repeat("a", maxIDLen+1))
	assert.Error(t, err)

	id, err := parseRunID("5F0C2D8E-8A5B-4C1A-9A43-3D1F4F1B2C7E")
	require.NoError(t, err)
	assert.Equal(t, fixedID, id)
}
