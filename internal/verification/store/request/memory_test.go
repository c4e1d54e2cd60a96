package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) newRequest(userID id.UserID, formID id.FormID) *models.Request {
	return &models.Request{
		UserID:    userID,
		FormID:    formID,
		Status:    models.StatusPending,
		OldRoles:  []string{"subscriber"},
		CreatedAt: time.Now(),
	}
}

func (s *RequestStoreSuite) TestCreationAndLookups() {
	s.Run("creates and loads a request", func() {
		request := s.newRequest(7, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)
		s.False(requestID.IsNil())

		loaded, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		s.Equal(id.UserID(7), loaded.UserID)
		s.Equal(int64(1), loaded.Version)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Load(s.ctx, id.NewRequestID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("loaded copies do not alias stored state", func() {
		request := s.newRequest(8, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		loaded, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		loaded.OldRoles[0] = "mutated"

		again, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		s.Equal([]string{"subscriber"}, again.OldRoles)
	})
}

func (s *RequestStoreSuite) TestVersionGuard() {
	s.Run("update with stale version fails with ErrConflict", func() {
		request := s.newRequest(9, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		first, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		second, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)

		first.Status = models.StatusApproved
		s.Require().NoError(s.store.Update(s.ctx, first, first.Version))

		second.Status = models.StatusRejected
		err = s.store.Update(s.ctx, second, second.Version)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		stored, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, stored.Status)
	})

	s.Run("successful update bumps the version", func() {
		request := s.newRequest(10, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		loaded, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		loaded.Status = models.StatusApproved
		s.Require().NoError(s.store.Update(s.ctx, loaded, loaded.Version))
		s.Equal(int64(2), loaded.Version)
	})

	s.Run("update of unknown request fails with ErrNotFound", func() {
		ghost := s.newRequest(11, "form-a")
		ghost.ID = id.NewRequestID()
		err := s.store.Update(s.ctx, ghost, 1)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestFinders() {
	s.Run("finds pending request by user and form", func() {
		request := s.newRequest(12, "form-a")
		_, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		found, err := s.store.FindPending(s.ctx, 12, "form-a")
		s.Require().NoError(err)
		s.Equal(request.ID, found.ID)

		_, err = s.store.FindPending(s.ctx, 12, "form-b")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("decided requests are not pending", func() {
		request := s.newRequest(13, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		loaded, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		loaded.Status = models.StatusApproved
		s.Require().NoError(s.store.Update(s.ctx, loaded, loaded.Version))

		_, err = s.store.FindPending(s.ctx, 13, "form-a")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("finds latest request regardless of status", func() {
		request := s.newRequest(14, "form-a")
		requestID, err := s.store.Create(s.ctx, request)
		s.Require().NoError(err)

		loaded, err := s.store.Load(s.ctx, requestID)
		s.Require().NoError(err)
		loaded.Status = models.StatusRejected
		s.Require().NoError(s.store.Update(s.ctx, loaded, loaded.Version))

		latest, err := s.store.FindLatest(s.ctx, 14)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, latest.Status)

		_, err = s.store.FindLatest(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
