package handler

import (
	"strings"

	"github.com/google/uuid"

	"supplydash/internal/events/emit"
	dErrors "supplydash/pkg/domain-errors"
)

const (
	maxIDLen     = 64
	maxKindLen   = 64
	maxReasonLen = 500
	maxDraftSize = 100
)

// ApprovalRequest is the body for POST /api/approvals.
type ApprovalRequest struct {
	Kind string `json:"kind"`
}

func (r *ApprovalRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Kind = strings.TrimSpace(r.Kind)
	if len(r.Kind) > maxKindLen {
		return dErrors.New(dErrors.CodeValidation, "kind must be at most 64 characters")
	}
	return nil
}

// DenyRequest is the optional body for POST /api/approvals/{id}/deny.
type DenyRequest struct {
	Reason string `json:"reason"`
}

func (r *DenyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > maxReasonLen {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}

// ForecastRunRequest is the body for POST /api/forecasts/runs.
type ForecastRunRequest struct {
	Params map[string]any `json:"params"`
}

func (r *ForecastRunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Params == nil {
		r.Params = map[string]any{}
	}
	return nil
}

// ForecastCompleteRequest is the body for POST /api/forecasts/runs/{id}/complete.
type ForecastCompleteRequest struct {
	Result map[string]any `json:"result"`
}

func (r *ForecastCompleteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Result == nil {
		return dErrors.New(dErrors.CodeValidation, "result is required")
	}
	return nil
}

// DraftRequest is the body for POST /api/replenishment/drafts.
type DraftRequest struct {
	Items []emit.DraftItem `json:"items"`
}

func (r *DraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "items must not be empty")
	}
	if len(r.Items) > maxDraftSize {
		return dErrors.New(dErrors.CodeValidation, "items must contain at most 100 entries")
	}
	for i := range r.Items {
		item := &r.Items[i]
		item.SKU = strings.TrimSpace(item.SKU)
		item.Location = strings.TrimSpace(item.Location)
		if item.SKU == "" {
			return dErrors.New(dErrors.CodeValidation, "item sku is required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return dErrors.New(dErrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"index": i, "sku": item.SKU})
		}
	}
	return nil
}

// parseApprovalID accepts any short printable identifier.
func parseApprovalID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxIDLen {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid approval id")
	}
	return id, nil
}

// parseRunID requires the uuid issued by POST /api/forecasts/runs.
func parseRunID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid forecast run id")
	}
	return id.String(), nil
}
