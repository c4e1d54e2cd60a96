package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"veriflow/internal/audit"
	"veriflow/internal/notify"
	"veriflow/internal/roles"
	"veriflow/internal/template"
	"veriflow/internal/verification/decision"
	"veriflow/internal/verification/intake"
	"veriflow/internal/verification/models"
	formconfigstore "veriflow/internal/verification/store/formconfig"
	requeststore "veriflow/internal/verification/store/request"
	id "veriflow/pkg/domain"
	"veriflow/pkg/testutil"
)

const (
	testUserID  = id.UserID(42)
	testActorID = id.UserID(7)
	testFormID  = "form-basic"
)

type HandlerSuite struct {
	suite.Suite

	router   http.Handler
	requests *requeststore.InMemory
	trail    *audit.InMemoryStore
	notifier *notify.Recorder
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.requests = requeststore.NewInMemory()
	s.trail = audit.NewInMemoryStore()
	s.notifier = notify.NewRecorder()

	configs := formconfigstore.NewInMemory()
	configs.Put(&models.FormConfig{
		FormID:         testFormID,
		ApprovedRole:   "verified",
		RejectedRole:   "member",
		ApproveSubject: "Approved",
		ApproveBody:    "approved",
		RejectSubject:  "Rejected",
		RejectBody:     "rejected",
		Recipients:     []string{"admins@example.com"},
	})

	userDir := roles.NewInMemory()
	userDir.SeedUser(testUserID, "alice@example.com", "Alice", "member")
	userDir.SeedUser(testActorID, "admin@example.com", "Admin", "staff")

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	trail := audit.NewTrail(s.trail)
	engine := template.New()

	intakeSvc, err := intake.New(s.requests, configs, userDir, userDir, s.notifier, engine, trail)
	s.Require().NoError(err)
	decisionSvc, err := decision.New(s.requests, configs, userDir, userDir, s.notifier, engine, trail)
	s.Require().NoError(err)

	h := New(intakeSvc, decisionSvc, s.requests, trail, logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) submitAndDecode() SubmissionResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/submissions", SubmissionRequest{
		UserID:   testUserID.String(),
		FormID:   testFormID,
		Provider: "webhook",
		Event:    "form_submitted",
	})
	rec := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var resp SubmissionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func (s *HandlerSuite) TestSubmissionCreatesRequest() {
	resp := s.submitAndDecode()
	s.Require().NotEmpty(resp.VerificationID)

	verificationID, err := id.ParseRequestID(resp.VerificationID)
	s.Require().NoError(err)

	stored, err := s.requests.Load(context.Background(), verificationID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *HandlerSuite) TestSubmissionForUnknownFormReturnsEmptyID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/submissions", SubmissionRequest{
		UserID: testUserID.String(),
		FormID: "form-unknown",
	})
	rec := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var resp SubmissionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Empty(resp.VerificationID)
}

func (s *HandlerSuite) TestSubmissionValidation() {
	s.Run("invalid JSON", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/submissions", "not json")
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing user_id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/submissions", SubmissionRequest{
			FormID: testFormID,
		})
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("non-numeric user_id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/submissions", SubmissionRequest{
			UserID: "alice",
			FormID: testFormID,
		})
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestDecisionApprove() {
	resp := s.submitAndDecode()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/requests/"+resp.VerificationID+"/decisions", DecisionRequest{
			Action:  "approve",
			ActorID: testActorID.String(),
		})
	rec := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var decided DecisionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&decided))
	s.True(decided.Applied)
}

func (s *HandlerSuite) TestDecisionOnDecidedRequestConflicts() {
	resp := s.submitAndDecode()
	target := "/requests/" + resp.VerificationID + "/decisions"

	rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, target,
		DecisionRequest{Action: "approve", ActorID: testActorID.String()}))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, target,
		DecisionRequest{Action: "reject", ActorID: testActorID.String()}))
	s.Require().Equal(http.StatusConflict, rec.Code)

	var decided DecisionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&decided))
	s.False(decided.Applied)
}

func (s *HandlerSuite) TestDecisionValidation() {
	resp := s.submitAndDecode()
	target := "/requests/" + resp.VerificationID + "/decisions"

	s.Run("unknown action", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, target,
			DecisionRequest{Action: "escalate"}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed id", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost,
			"/requests/not-a-uuid/decisions", DecisionRequest{Action: "approve"}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetRequest() {
	resp := s.submitAndDecode()

	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/requests/"+resp.VerificationID))
	s.Require().Equal(http.StatusOK, rec.Code)

	var got RequestResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal(resp.VerificationID, got.ID)
	s.Equal(testUserID.String(), got.UserID)
	s.Equal(string(models.StatusPending), got.Status)
	s.WithinDuration(time.Now(), got.CreatedAt, time.Minute)
}

func (s *HandlerSuite) TestGetRequestNotFound() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/requests/"+id.NewRequestID().String()))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestGetAuditTrail() {
	resp := s.submitAndDecode()
	target := "/requests/" + resp.VerificationID + "/decisions"
	rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, target,
		DecisionRequest{Action: "approve", ActorID: testActorID.String()}))
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/requests/"+resp.VerificationID+"/audit"))
	s.Require().Equal(http.StatusOK, rec.Code)

	var got AuditResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
	s.Equal(resp.VerificationID, got.VerificationID)

	actions := make([]string, 0, len(got.Entries))
	for _, entry := range got.Entries {
		actions = append(actions, entry.Action)
	}
	s.Equal([]string{
		string(audit.ActionCreated),
		string(audit.ActionApproveBegin),
		string(audit.ActionEmailSent),
		string(audit.ActionApproved),
	}, actions)
}

func (s *HandlerSuite) TestGetAuditTrailForUnknownRequest() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/requests/"+id.NewRequestID().String()+"/audit"))
	s.Equal(http.StatusNotFound, rec.Code)
}
