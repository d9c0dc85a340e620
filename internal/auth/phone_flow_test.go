package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
	"github.com/accordlabs/accord-gateway/pkg/testutil"
)

type PhoneFlowTestSuite struct {
	suite.Suite
	backend *testutil.MockBackend
	store   *session.Store
	flow    *PhoneFlow
}

func (s *PhoneFlowTestSuite) SetupTest() {
	s.backend = testutil.NewMockBackend()
	s.store = session.NewStore()
	api := httpclient.New(s.backend.URL(), s.store, logger.Discard())
	s.flow = NewPhoneFlow(api, s.store, nil, nil, logger.Discard())
}

func (s *PhoneFlowTestSuite) TearDownTest() {
	s.flow.Close()
	s.backend.Close()
}

func (s *PhoneFlowTestSuite) TestSubmitPhoneValidation() {
	_, err := s.flow.SubmitPhone(context.Background(), "+1", "   ")
	s.ErrorIs(err, ErrEmptyPhone)
	s.Equal(PhoneStatePhoneEntry, s.flow.Snapshot().State)

	_, err = s.flow.SubmitPhone(context.Background(), "+999", "5551234")
	s.ErrorIs(err, ErrUnknownDialCode)
	s.Equal(PhoneStatePhoneEntry, s.flow.Snapshot().State)

	// No request reached the backend for either rejection.
	s.Equal(0, s.backend.CountRequests("/telegram/connect"))
}

func (s *PhoneFlowTestSuite) TestHappyPathWithoutPassword() {
	snap, err := s.flow.SubmitPhone(context.Background(), "+44", "7700 900123")
	s.Require().NoError(err)
	s.Equal(PhoneStateCodeEntry, snap.State)

	reqs := s.backend.Requests()
	s.Require().NotEmpty(reqs)
	s.Equal("+447700900123", reqs[len(reqs)-1].Body["phone_number"])

	snap, err = s.flow.SubmitCode(context.Background(), "12345")
	s.Require().NoError(err)
	s.Equal(PhoneStateComplete, snap.State)

	token, ok := s.store.Token()
	s.True(ok)
	s.Equal("test-access-token", token)
}

func (s *PhoneFlowTestSuite) TestVerifySendsPhoneCodeHash() {
	_, err := s.flow.SubmitPhone(context.Background(), "+1", "2025550123")
	s.Require().NoError(err)
	_, err = s.flow.SubmitCode(context.Background(), "12345")
	s.Require().NoError(err)

	for _, r := range s.backend.Requests() {
		if r.Path == "/telegram/verify" {
			s.Equal("h1", r.Body["phone_code_hash"])
			s.Equal("12345", r.Body["code"])
			return
		}
	}
	s.Fail("no verify request recorded")
}

func (s *PhoneFlowTestSuite) TestTwoFactorKeepsPhoneAndCode() {
	s.backend.SetNeedsPassword(true)

	_, err := s.flow.SubmitPhone(context.Background(), "+49", "15123456789")
	s.Require().NoError(err)

	snap, err := s.flow.SubmitCode(context.Background(), "54321")
	s.ErrorIs(err, ErrPasswordRequired)
	s.Equal(PhoneStateTwoFactor, snap.State)
	s.Equal("15123456789", snap.PhoneNumber)
	s.Equal("54321", snap.Code)

	snap, err = s.flow.SubmitPassword(context.Background(), "hunter2")
	s.Require().NoError(err)
	s.Equal(PhoneStateComplete, snap.State)

	// The retained code was re-sent alongside the password.
	var last map[string]interface{}
	for _, r := range s.backend.Requests() {
		if r.Path == "/telegram/verify" {
			last = r.Body
		}
	}
	s.Require().NotNil(last)
	s.Equal("54321", last["code"])
	s.Equal("hunter2", last["password"])
}

func (s *PhoneFlowTestSuite) TestWrongPasswordStaysInTwoFactor() {
	s.backend.SetNeedsPassword(true)

	_, err := s.flow.SubmitPhone(context.Background(), "+33", "612345678")
	s.Require().NoError(err)
	_, err = s.flow.SubmitCode(context.Background(), "11111")
	s.ErrorIs(err, ErrPasswordRequired)

	s.backend.FailPath("/telegram/verify", http.StatusBadRequest)
	snap, err := s.flow.SubmitPassword(context.Background(), "wrong")
	s.ErrorIs(err, ErrInvalidPassword)
	s.Equal(PhoneStateTwoFactor, snap.State)
	s.Equal("11111", snap.Code)
}

func (s *PhoneFlowTestSuite) TestEditPhoneReturnsToEntry() {
	_, err := s.flow.SubmitPhone(context.Background(), "+1", "2025550123")
	s.Require().NoError(err)

	snap := s.flow.EditPhone()
	s.Equal(PhoneStatePhoneEntry, snap.State)
	s.Equal("2025550123", snap.PhoneNumber)
	s.Empty(snap.Code)
}

func (s *PhoneFlowTestSuite) TestSubmitCodeOutOfOrder() {
	_, err := s.flow.SubmitCode(context.Background(), "12345")
	s.ErrorIs(err, ErrWrongState)
}

func TestPhoneFlowTestSuite(t *testing.T) {
	suite.Run(t, new(PhoneFlowTestSuite))
}
