package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"trustledger/internal/credential/models"
	"trustledger/internal/platform/middleware"
	"trustledger/internal/trust"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

type fakeService struct {
	issued    *models.Credential
	issueErr  error
	stored    models.Credential
	status    models.Status
	getErr    error
	valid     bool
	revokeErr error
	revoked   id.CredentialID
}

func (f *fakeService) Issue(_ context.Context, agent id.DID, credType models.CredentialType, category string, _ int) (*models.Credential, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	if f.issued != nil {
		f.issued.AgentDID = agent
		f.issued.Type = credType
		f.issued.Category = category
	}
	return f.issued, nil
}

func (f *fakeService) Get(_ context.Context, credentialID id.CredentialID) (models.Credential, models.Status, error) {
	if f.getErr != nil {
		return models.Credential{}, "", f.getErr
	}
	f.stored.ID = credentialID
	return f.stored, f.status, nil
}

func (f *fakeService) ListByAgent(_ context.Context, agent id.DID) ([]models.Credential, error) {
	if f.issued == nil {
		return nil, nil
	}
	return []models.Credential{*f.issued}, nil
}

func (f *fakeService) Verify(models.Credential) bool { return f.valid }

func (f *fakeService) Revoke(_ context.Context, credentialID id.CredentialID) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = credentialID
	return nil
}

type fakeValidator struct{ err error }

func (f *fakeValidator) Validate(string) (*middleware.TokenClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &middleware.TokenClaims{Subject: "platform-1"}, nil
}

type CredentialHandlerSuite struct {
	suite.Suite
	service   *fakeService
	validator *fakeValidator
	router    chi.Router
}

func TestCredentialHandlerSuite(t *testing.T) {
	suite.Run(t, new(CredentialHandlerSuite))
}

func (s *CredentialHandlerSuite) SetupTest() {
	s.service = &fakeService{status: models.StatusActive}
	s.validator = &fakeValidator{}
	s.router = chi.NewRouter()
	New(s.service, slog.Default(), s.validator).Register(s.router)
}

func (s *CredentialHandlerSuite) issueBody(credType string) []byte {
	body, err := json.Marshal(IssueRequest{
		AgentDID:       "did:key:agent",
		CredentialType: credType,
		WindowDays:     30,
	})
	s.Require().NoError(err)
	return body
}

func (s *CredentialHandlerSuite) TestIssue_Created() {
	s.service.issued = &models.Credential{
		ID:       "cred-1",
		IssuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:     trust.WindowSummary{TaskCount: 10},
	}

	req := httptest.NewRequest(http.MethodPost, "/credentials/issue", bytes.NewReader(s.issueBody("volume")))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusCreated, rec.Code)
	var resp IssueResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.Success)
	s.Require().NotNil(resp.Credential)
	s.Equal(models.TypeVolume, resp.Credential.Type)
}

func (s *CredentialHandlerSuite) TestIssue_Refused() {
	// Service returns (nil, nil): refusal, not an error.
	req := httptest.NewRequest(http.MethodPost, "/credentials/issue", bytes.NewReader(s.issueBody("volume")))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp IssueResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.False(resp.Success)
	s.Nil(resp.Credential)
}

func (s *CredentialHandlerSuite) TestIssue_RequiresAuth() {
	req := httptest.NewRequest(http.MethodPost, "/credentials/issue", bytes.NewReader(s.issueBody("volume")))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *CredentialHandlerSuite) TestIssue_Validation() {
	cases := []struct {
		name string
		body IssueRequest
	}{
		{"bad did", IssueRequest{AgentDID: "not-a-did", CredentialType: "volume"}},
		{"unknown type", IssueRequest{AgentDID: "did:key:agent", CredentialType: "fame"}},
		{"specialization without category", IssueRequest{AgentDID: "did:key:agent", CredentialType: "category_specialization"}},
		{"negative window", IssueRequest{AgentDID: "did:key:agent", CredentialType: "volume", WindowDays: -1}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			body, err := json.Marshal(tc.body)
			s.Require().NoError(err)
			req := httptest.NewRequest(http.MethodPost, "/credentials/issue", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()

			s.router.ServeHTTP(rec, req)

			s.Equal(http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func (s *CredentialHandlerSuite) TestGet_ReportsStatus() {
	s.service.status = models.StatusRevoked

	req := httptest.NewRequest(http.MethodGet, "/credentials/cred-1", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp GetResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(models.StatusRevoked, resp.Status)
	s.Equal(id.CredentialID("cred-1"), resp.Credential.ID)
}

func (s *CredentialHandlerSuite) TestGet_NotFound() {
	s.service.getErr = dErrors.New(dErrors.CodeNotFound, "credential not found")

	req := httptest.NewRequest(http.MethodGet, "/credentials/missing", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *CredentialHandlerSuite) TestVerify() {
	s.service.valid = true
	body, err := json.Marshal(models.Credential{ID: "cred-1", Signature: "sig"})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/credentials/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp VerifyResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.Valid)
}

func (s *CredentialHandlerSuite) TestRevoke() {
	req := httptest.NewRequest(http.MethodPost, "/credentials/cred-1/revoke", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(id.CredentialID("cred-1"), s.service.revoked)
}

func (s *CredentialHandlerSuite) TestRevoke_RequiresAuth() {
	req := httptest.NewRequest(http.MethodPost, "/credentials/cred-1/revoke", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.service.revoked)
}

func (s *CredentialHandlerSuite) TestList() {
	s.service.issued = &models.Credential{ID: "cred-1", AgentDID: "did:key:agent"}

	req := httptest.NewRequest(http.MethodGet, "/agents/did:key:agent/credentials", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	var resp ListResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Len(resp.Credentials, 1)
}
