package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"supplydash/internal/events/emit"
	"supplydash/internal/supply/handler/mocks"
	"supplydash/pkg/domain"
	"supplydash/pkg/testutil"
)

const fixedID = "5f0c2d8e-8a5b-4c1a-9a43-3d1f4f1b2c7e"

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	emitter *mocks.MockEmitter
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.emitter = mocks.NewMockEmitter(s.ctrl)
	h := New(s.emitter, testutil.DiscardLogger(), WithIDGenerator(func() string { return fixedID }))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TestRequestApproval() {
	s.Run("planner requests an approval", func() {
		s.emitter.EXPECT().ApprovalRequested(gomock.Any(), emit.ApprovalRequest{
			ID: fixedID, By: "planner", Kind: "po",
		})
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals", map[string]any{"kind": " po "})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		body := testutil.RequireOK(s.T(), rr, http.StatusAccepted)
		s.Equal(fixedID, body["id"])
	})

	s.Run("viewer is forbidden", func() {
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals", map[string]any{})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RoleViewer))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("malformed body is rejected without emitting", func() {
		rr := testutil.Serve(s.router, testutil.WithRole(
			testutil.RawRequest(http.MethodPost, "/api/approvals", `{"kind":`), domain.RolePlanner))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestGrantApproval() {
	s.Run("approver grants", func() {
		s.emitter.EXPECT().ApprovalGranted(gomock.Any(), emit.ApprovalDecision{TargetID: "apr-1", By: "approver"})
		rr := testutil.Serve(s.router, testutil.WithRole(
			testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals/apr-1/grant", nil), domain.RoleApprover))
		body := testutil.RequireOK(s.T(), rr, http.StatusOK)
		s.Equal("granted", body["status"])
	})

	s.Run("admin is always allowed", func() {
		s.emitter.EXPECT().ApprovalGranted(gomock.Any(), emit.ApprovalDecision{TargetID: "apr-2", By: "admin"})
		rr := testutil.Serve(s.router, testutil.WithRole(
			testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals/apr-2/grant", nil), domain.RoleAdmin))
		testutil.RequireOK(s.T(), rr, http.StatusOK)
	})

	s.Run("planner cannot grant", func() {
		rr := testutil.Serve(s.router, testutil.WithRole(
			testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals/apr-1/grant", nil), domain.RolePlanner))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *HandlerSuite) TestDenyApproval() {
	s.Run("with reason", func() {
		s.emitter.EXPECT().ApprovalDenied(gomock.Any(), emit.ApprovalDecision{
			TargetID: "apr-1", By: "approver", Reason: "over budget",
		})
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals/apr-1/deny", map[string]any{"reason": "over budget"})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RoleApprover))
		body := testutil.RequireOK(s.T(), rr, http.StatusOK)
		s.Equal("denied", body["status"])
	})

	s.Run("without body", func() {
		s.emitter.EXPECT().ApprovalDenied(gomock.Any(), emit.ApprovalDecision{TargetID: "apr-1", By: "approver"})
		rr := testutil.Serve(s.router, testutil.WithRole(
			testutil.JSONRequest(s.T(), http.MethodPost, "/api/approvals/apr-1/deny", nil), domain.RoleApprover))
		testutil.RequireOK(s.T(), rr, http.StatusOK)
	})
}

func (s *HandlerSuite) TestForecastRuns() {
	s.Run("start", func() {
		s.emitter.EXPECT().ForecastRunStarted(gomock.Any(), emit.ForecastRunStart{
			ID: fixedID, Params: map[string]any{"horizon": float64(14)},
		})
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/forecasts/runs",
			map[string]any{"params": map[string]any{"horizon": 14}})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		body := testutil.RequireOK(s.T(), rr, http.StatusAccepted)
		s.Equal(fixedID, body["id"])
	})

	s.Run("complete", func() {
		s.emitter.EXPECT().ForecastRunCompleted(gomock.Any(), emit.ForecastRunResult{
			ID: fixedID, Result: map[string]any{"mape": 0.12},
		})
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/forecasts/runs/"+fixedID+"/complete",
			map[string]any{"result": map[string]any{"mape": 0.12}})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		testutil.RequireOK(s.T(), rr, http.StatusOK)
	})

	s.Run("complete rejects non uuid run id", func() {
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/forecasts/runs/abc/complete",
			map[string]any{"result": map[string]any{}})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("approver cannot start runs", func() {
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/forecasts/runs", map[string]any{})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RoleApprover))
		testutil.AssertError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *HandlerSuite) TestCreateDraft() {
	s.Run("valid draft", func() {
		s.emitter.EXPECT().ReplenishmentDraftCreated(gomock.Any(), emit.ReplenishmentDraft{
			DraftID: fixedID,
			Items:   []emit.DraftItem{{SKU: "SKU-1", Quantity: 4, Location: "DC1"}},
		})
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/replenishment/drafts", map[string]any{
			"items": []map[string]any{{"sku": " SKU-1 ", "quantity": 4, "location": "DC1"}},
		})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		body := testutil.RequireOK(s.T(), rr, http.StatusCreated)
		s.Equal(fixedID, body["draftId"])
	})

	s.Run("empty items", func() {
		req := testutil.JSONRequest(s.T(), http.MethodPost, "/api/replenishment/drafts", map[string]any{"items": []any{}})
		rr := testutil.Serve(s.router, testutil.WithRole(req, domain.RolePlanner))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func TestActorDefaultsToViewer(t *testing.T) {
	if got := actor(context.Background()); got != "viewer" {
		t.Fatalf("actor() = %q, want viewer", got)
	}
}
