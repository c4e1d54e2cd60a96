package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriflow/internal/audit"
	"veriflow/internal/notify"
	"veriflow/internal/roles"
	"veriflow/internal/template"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	formconfigstore "veriflow/internal/verification/store/formconfig"
	requeststore "veriflow/internal/verification/store/request"
	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

const (
	testUserID  = id.UserID(42)
	testActorID = id.UserID(7)
	testFormID  = id.FormID("form-basic")
)

type DecisionSuite struct {
	suite.Suite

	requests   *requeststore.InMemory
	configs    *formconfigstore.InMemory
	roles      *roles.InMemory
	notifier   *notify.Recorder
	trail      *audit.InMemoryStore
	subscriber *recordingSubscriber
	svc        *Service

	requestID id.RequestID
}

func TestDecisionSuite(t *testing.T) {
	suite.Run(t, new(DecisionSuite))
}

func (s *DecisionSuite) SetupTest() {
	s.requests = requeststore.NewInMemory()
	s.configs = formconfigstore.NewInMemory()
	s.roles = roles.NewInMemory()
	s.notifier = notify.NewRecorder()
	s.trail = audit.NewInMemoryStore()
	s.subscriber = &recordingSubscriber{}

	s.roles.SeedUser(testUserID, "alice@example.com", "Alice", "member")
	s.roles.SeedUser(testActorID, "admin@example.com", "Admin", "staff")
	s.configs.Put(&models.FormConfig{
		FormID:         testFormID,
		ApprovedRole:   "verified",
		RejectedRole:   "member",
		ApproveSubject: "Welcome, {{user.name}}",
		ApproveBody:    "<p>Your request {{request.id}} was approved.</p>",
		RejectSubject:  "Request update for {user_name}",
		RejectBody:     "<p>Your submission to {{form.id}} was not approved.</p>",
	})

	request := &models.Request{
		UserID:    testUserID,
		FormID:    testFormID,
		Status:    models.StatusPending,
		OldRoles:  []string{"member"},
		CreatedAt: time.Now().UTC(),
	}
	var err error
	s.requestID, err = s.requests.Create(context.Background(), request)
	s.Require().NoError(err)

	s.svc, err = New(
		s.requests, s.configs, s.roles, s.roles, s.notifier,
		template.New(), audit.NewTrail(s.trail),
		WithSubscriber(s.subscriber),
	)
	s.Require().NoError(err)
}

func (s *DecisionSuite) opts() Options {
	return Options{ActorID: testActorID}
}

func (s *DecisionSuite) entries() []audit.Entry {
	entries, err := s.trail.ListByRequest(context.Background(), s.requestID)
	s.Require().NoError(err)
	return entries
}

func (s *DecisionSuite) actions() []audit.Action {
	entries := s.entries()
	actions := make([]audit.Action, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func (s *DecisionSuite) currentRoles() []string {
	got, err := s.roles.GetRoles(context.Background(), testUserID)
	s.Require().NoError(err)
	return got
}

func (s *DecisionSuite) TestApproveHappyPath() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal(testActorID, stored.ProcessedBy)
	s.Require().NotNil(stored.ProcessedAt)
	s.Equal([]string{"member"}, stored.OldRoles)

	s.Equal([]string{"verified"}, s.currentRoles())

	sent := s.notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal([]string{"alice@example.com"}, sent[0].To)
	s.Equal("Welcome, Alice", sent[0].Subject)
	s.Contains(sent[0].Body, s.requestID.String())

	s.Equal([]audit.Action{
		audit.ActionApproveBegin,
		audit.ActionEmailSent,
		audit.ActionApproved,
	}, s.actions())

	terminal := s.entries()[2]
	s.Equal("member", terminal.Data[audit.DataFromRole])
	s.Equal("verified", terminal.Data[audit.DataToRole])
	s.Equal(testActorID, terminal.ActorID)

	s.Require().Len(s.subscriber.events, 1)
	s.Equal(models.ActionApprove, s.subscriber.events[0].Action)
	s.Equal(models.StatusApproved, s.subscriber.events[0].Status)
}

func (s *DecisionSuite) TestRejectRendersLegacyFlatTokens() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionReject, s.opts()))

	s.Equal([]string{"member"}, s.currentRoles())

	sent := s.notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal("Request update for Alice", sent[0].Subject)
	s.Contains(sent[0].Body, testFormID.String())
}

func (s *DecisionSuite) TestApproveFallsBackToContextActor() {
	ctx := requestcontext.WithActorID(context.Background(), testActorID)
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, Options{}))

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(testActorID, stored.ProcessedBy)
}

func (s *DecisionSuite) TestSecondDecisionIsNoOp() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))
	s.False(s.svc.Apply(ctx, s.requestID, models.ActionReject, s.opts()))

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal([]string{"verified"}, s.currentRoles())
	s.Len(s.notifier.Sent(), 1)
}

func (s *DecisionSuite) TestUnknownRequestIsNoOp() {
	s.False(s.svc.Apply(context.Background(), id.NewRequestID(), models.ActionApprove, s.opts()))
	s.Empty(s.entries())
}

func (s *DecisionSuite) TestLostWriteRaceLeavesFailedUpdateEntry() {
	ctx := context.Background()

	// Move the stored version past what the service will observe at load
	// time by winning the race with a direct write.
	racer, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)

	conflicted := &conflictOnUpdate{InMemory: s.requests, winner: racer}
	svc, err := New(
		conflicted, s.configs, s.roles, s.roles, s.notifier,
		template.New(), audit.NewTrail(s.trail),
	)
	s.Require().NoError(err)

	s.False(svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))

	s.Equal([]audit.Action{
		audit.ActionApproveBegin,
		audit.ActionApproveFailedWrite,
	}, s.actions())

	// The role side effect already landed; the trail is how operators find out.
	s.Equal([]string{"verified"}, s.currentRoles())
	s.Empty(s.notifier.Sent())
}

func (s *DecisionSuite) TestMissingConfigIsNoOp() {
	ctx := context.Background()
	sub := &models.Request{
		UserID:    testUserID,
		FormID:    "form-unconfigured",
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	requestID, err := s.requests.Create(ctx, sub)
	s.Require().NoError(err)

	s.False(s.svc.Apply(ctx, requestID, models.ActionApprove, s.opts()))
	s.Equal([]string{"member"}, s.currentRoles())
}

func (s *DecisionSuite) TestEmailFailureDoesNotRollBackDecision() {
	ctx := context.Background()
	s.notifier.FailWith(context.DeadlineExceeded)

	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal([]string{"verified"}, s.currentRoles())

	s.Equal([]audit.Action{
		audit.ActionApproveBegin,
		audit.ActionEmailFailed,
		audit.ActionApproved,
	}, s.actions())
}

func (s *DecisionSuite) TestSkipsEmailForInvalidAddress() {
	ctx := context.Background()
	s.roles.SeedUser(testUserID, "not-an-address", "Alice", "member")

	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))
	s.Empty(s.notifier.Sent())

	entries := s.entries()
	s.Require().Len(entries, 3)
	s.Equal(audit.ActionEmailSkipped, entries[1].Action)
	s.Equal(skipReasonBadEmail, entries[1].Data[audit.DataReason])
}

func (s *DecisionSuite) TestCCSelfBlindCopiesActor() {
	ctx := context.Background()
	opts := s.opts()
	opts.CCSelf = true

	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, opts))

	sent := s.notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal([]string{"admin@example.com"}, sent[0].BCC)
}

func (s *DecisionSuite) TestReopenRestoresSnapshotAndClearsStamp() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionReopen, s.opts()))

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Equal(id.UserID(0), stored.ProcessedBy)
	s.Nil(stored.ProcessedAt)

	s.Equal([]string{"member"}, s.currentRoles())

	// Reopen sends no email.
	s.Len(s.notifier.Sent(), 1)

	last := s.entries()[len(s.entries())-1]
	s.Equal(audit.ActionReopened, last.Action)
	s.Equal(string(models.StatusApproved), last.Data[audit.DataFromStatus])
	s.Equal("member", last.Data[audit.DataToRole])
}

func (s *DecisionSuite) TestReopenOfPendingIsNoOp() {
	s.False(s.svc.Apply(context.Background(), s.requestID, models.ActionReopen, s.opts()))
	s.Empty(s.entries())
}

func (s *DecisionSuite) TestRepeatedCycleRestoresOnlyPriorSnapshot() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionReopen, s.opts()))

	// Roles drift while the request sits pending again.
	s.Require().NoError(s.roles.SetSingleRole(ctx, testUserID, "editor"))

	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionReject, s.opts()))
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionReopen, s.opts()))

	// The second reopen restores the reject's snapshot, not the
	// original pre-approve role set.
	s.Equal([]string{"editor"}, s.currentRoles())

	stored, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *DecisionSuite) TestResendReplaysEmailWithoutStateChange() {
	ctx := context.Background()
	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionApprove, s.opts()))

	before, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)

	s.Require().True(s.svc.Apply(ctx, s.requestID, models.ActionResend, s.opts()))

	after, err := s.requests.Load(ctx, s.requestID)
	s.Require().NoError(err)
	s.Equal(before.Status, after.Status)
	s.Equal(before.Version, after.Version)
	s.Equal(before.ProcessedBy, after.ProcessedBy)

	sent := s.notifier.Sent()
	s.Require().Len(sent, 2)
	s.Equal(sent[0].Subject, sent[1].Subject)

	actions := s.actions()
	s.Equal(audit.ActionResend, actions[len(actions)-2])
	s.Equal(audit.ActionEmailSent, actions[len(actions)-1])
}

func (s *DecisionSuite) TestResendOfPendingIsNoOp() {
	s.False(s.svc.Apply(context.Background(), s.requestID, models.ActionResend, s.opts()))
	s.Empty(s.notifier.Sent())
}

func (s *DecisionSuite) TestSubscriberFailureDoesNotAffectOutcome() {
	s.subscriber.err = context.DeadlineExceeded
	s.True(s.svc.Apply(context.Background(), s.requestID, models.ActionApprove, s.opts()))
}

func (s *DecisionSuite) TestApplyWithoutMailDeliveryStillTransitions() {
	svc, err := New(
		s.requests, s.configs, s.roles, s.roles, nil,
		nil, audit.NewTrail(s.trail),
	)
	s.Require().NoError(err)

	s.True(svc.Apply(context.Background(), s.requestID, models.ActionApprove, s.opts()))

	stored, err := s.requests.Load(context.Background(), s.requestID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal([]string{"verified"}, s.currentRoles())

	// No mail wiring means no email entries, only the transition itself.
	s.Equal([]audit.Action{audit.ActionApproveBegin, audit.ActionApproved}, s.actions())
}

type recordingSubscriber struct {
	events []ports.DecisionMade
	err    error
}

func (r *recordingSubscriber) Notify(_ context.Context, event ports.DecisionMade) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// conflictOnUpdate wraps the in-memory store and lets a competing write land
// right before the service's own update, forcing a version conflict.
type conflictOnUpdate struct {
	*requeststore.InMemory
	winner *models.Request
	fired  bool
}

func (c *conflictOnUpdate) Update(ctx context.Context, request *models.Request, expectedVersion int64) error {
	if !c.fired {
		c.fired = true
		if err := c.InMemory.Update(ctx, c.winner, c.winner.Version); err != nil {
			return err
		}
	}
	return c.InMemory.Update(ctx, request, expectedVersion)
}
