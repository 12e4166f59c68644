package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"LeadDesk/internal/db"
	"LeadDesk/internal/logging"
	"LeadDesk/internal/models"
	"LeadDesk/internal/service"
	"LeadDesk/internal/session"
)

type stubVerifier map[string]session.Claims

func (v stubVerifier) Verify(token string) (session.Claims, error) {
	c, ok := v[token]
	if !ok {
		return session.Claims{}, session.ErrInvalidToken
	}
	return c, nil
}

// stubService implements only what the tests below call; anything else
// panics through the embedded nil interface and surfaces as a 500.
type stubService struct {
	Service

	users map[string]models.User

	submitted  []service.SubmitLeadInput
	submitErr  error
	leadFilter models.LeadFilter
	leads      []models.Lead
	payouts    []models.PayoutWithUser
	approveErr error
	suspended  map[string]bool
	dbStatus   service.DatabaseStatus
	qr         []byte
}

func newStubService() *stubService {
	return &stubService{
		users: map[string]models.User{
			"u-aff":       {ID: "u-aff", Email: "aff@example.com"},
			"u-admin":     {ID: "u-admin", Email: "admin@example.com", IsAdmin: true},
			"u-suspended": {ID: "u-suspended", Email: "gone@example.com", IsSuspended: true},
		},
		suspended: map[string]bool{},
		dbStatus:  service.DatabaseStatus{Status: service.DBStatusConnected},
	}
}

func (s *stubService) EnsureUser(ctx context.Context, claims session.Claims) (models.User, error) {
	u, ok := s.users[claims.Subject]
	if !ok {
		return models.User{}, fmt.Errorf("ensure user: %w", errors.New("store down"))
	}
	return u, nil
}

func (s *stubService) Programs() []string { return []string{"Alpha", "Beta"} }

func (s *stubService) DatabaseStatus(ctx context.Context) service.DatabaseStatus { return s.dbStatus }

func (s *stubService) Me(ctx context.Context, sess session.Session) (models.User, error) {
	return s.users[sess.UserID], nil
}

func (s *stubService) SubmitLead(ctx context.Context, sess session.Session, in service.SubmitLeadInput) (models.Lead, error) {
	if s.submitErr != nil {
		return models.Lead{}, s.submitErr
	}
	s.submitted = append(s.submitted, in)
	return models.Lead{ID: "l-new", AffiliateID: sess.UserID, FullName: in.FullName, Status: "pending"}, nil
}

func (s *stubService) GetLead(ctx context.Context, sess session.Session, id string) (models.Lead, error) {
	for _, l := range s.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return models.Lead{}, fmt.Errorf("get lead: %w", db.ErrNotFound)
}

func (s *stubService) AdminListLeads(ctx context.Context, sess session.Session, f models.LeadFilter) ([]models.Lead, error) {
	s.leadFilter = f
	return s.leads, nil
}

func (s *stubService) CallQRCode(ctx context.Context, sess session.Session, id string) ([]byte, error) {
	return s.qr, nil
}

func (s *stubService) SetSuspended(ctx context.Context, sess session.Session, id string, suspended bool) error {
	s.suspended[id] = suspended
	return nil
}

func (s *stubService) AdminListPayouts(ctx context.Context, sess session.Session, f models.PayoutFilter) ([]models.PayoutWithUser, error) {
	return s.payouts, nil
}

func (s *stubService) ApprovePayout(ctx context.Context, sess session.Session, id, note string) (models.PayoutRequest, models.Allocation, error) {
	if s.approveErr != nil {
		return models.PayoutRequest{}, models.Allocation{}, s.approveErr
	}
	return models.PayoutRequest{ID: id, Status: "approved", Note: note},
		models.Allocation{PaidLeadIDs: []string{"l-1"}, Remaining: decimal.Zero}, nil
}

var testTokens = stubVerifier{
	"aff-token":       {Subject: "u-aff", Email: "aff@example.com"},
	"admin-token":     {Subject: "u-admin", Email: "admin@example.com"},
	"suspended-token": {Subject: "u-suspended", Email: "gone@example.com"},
	"orphan-token":    {Subject: "u-missing", Email: "missing@example.com"},
}

func newTestRouter(svc *stubService) http.Handler {
	return NewRouter(Dependencies{
		Service:            svc,
		Verifier:           testTokens,
		Logger:             logging.Discard(),
		CORSAllowedOrigins: []string{"https://portal.example.com"},
		RateLimitRPS:       0.001,
		RateLimitBurst:     2,
	})
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPublicRoutes(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/programs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []interface{}{"Alpha", "Beta"}, resp.Data)

	rec = do(t, router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaddesk_http_requests_total")
}

func TestDatabaseHealth(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	svc.dbStatus = service.DatabaseStatus{Status: service.DBStatusNoTables, Error: "relation missing"}
	rec := do(t, router, http.MethodGet, "/api/health/db", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), service.DBStatusNoTables)

	svc.dbStatus = service.DatabaseStatus{Status: service.DBStatusError, Error: "dial tcp: refused"}
	rec = do(t, router, http.MethodGet, "/api/health/db", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decodeEnvelope(t, rec).Status)
}

func TestAuthentication(t *testing.T) {
	router := newTestRouter(newStubService())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"unknown token", "forged", http.StatusUnauthorized},
		{"suspended affiliate", "suspended-token", http.StatusForbidden},
		{"store failure", "orphan-token", http.StatusInternalServerError},
		{"affiliate", "aff-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/me", tt.token, "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/admin/leads", "aff-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/admin/leads?status=approved&call_requested=true&affiliate_id=u-aff&limit=9999", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", svc.leadFilter.Status)
	assert.Equal(t, "u-aff", svc.leadFilter.AffiliateID)
	require.NotNil(t, svc.leadFilter.CallRequested)
	assert.True(t, *svc.leadFilter.CallRequested)
	assert.Equal(t, maxListLimit, svc.leadFilter.Limit)

	rec = do(t, router, http.MethodGet, "/api/admin/leads?call_requested=maybe", "admin-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitLead(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/leads", "aff-token",
		`{"full_name":"Jane Roe","email":"jane@acme.io","program":"Alpha"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "Jane Roe", svc.submitted[0].FullName)

	rec = do(t, router, http.MethodPost, "/api/leads", "aff-token", `{"full_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitLeadIsRateLimited(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)
	body := `{"full_name":"Jane Roe","email":"jane@acme.io","program":"Alpha"}`

	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/leads", "aff-token", body).Code)
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/leads", "aff-token", body).Code)

	rec := do(t, router, http.MethodPost, "/api/leads", "aff-token", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Buckets are per user.
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/leads", "admin-token", body).Code)
}

func TestGetLeadNotFound(t *testing.T) {
	router := newTestRouter(newStubService())
	rec := do(t, router, http.MethodGet, "/api/leads/l-404", "aff-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("submit: %w", &service.ValidationError{Field: "email", Message: "is invalid"}), http.StatusBadRequest},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"not found", fmt.Errorf("get lead: %w", db.ErrNotFound), http.StatusNotFound},
		{"invalid transition", fmt.Errorf("%w: payout p-1 is already approved", service.ErrInvalidTransition), http.StatusConflict},
		{"conflict", fmt.Errorf("transition: %w", db.ErrConflict), http.StatusConflict},
		{"partial approval", &service.PartialApprovalError{PayoutID: "p-1", Err: db.ErrConflict}, http.StatusBadGateway},
		{"other", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, logging.Discard(), tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", decodeEnvelope(t, rec).Status)
		})
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, logging.Discard(), errors.New("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestApprovePayout(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/admin/payouts/p-1/approve", "admin-token", `{"note":"sent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid_lead_ids":["l-1"]`)

	rec = do(t, router, http.MethodPost, "/api/admin/payouts/p-1/approve", "admin-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.approveErr = &service.PartialApprovalError{PayoutID: "p-1", Err: errors.New("timeout")}
	rec = do(t, router, http.MethodPost, "/api/admin/payouts/p-1/approve", "admin-token", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "reconciliation")
}

func TestSuspendUser(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/admin/users/u-aff/suspend", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.suspended["u-aff"])

	rec = do(t, router, http.MethodPost, "/api/admin/users/u-aff/suspend", "admin-token", `{"suspended":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.suspended["u-aff"])
}

func TestCallQRCode(t *testing.T) {
	svc := newStubService()
	svc.qr = []byte("\x89PNG fake")
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/admin/leads/l-1/call-qr", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, svc.qr, rec.Body.Bytes())
}

func TestExportLeads(t *testing.T) {
	svc := newStubService()
	price := decimal.RequireFromString("150.5")
	svc.leads = []models.Lead{{
		ID: "l-1", AffiliateID: "u-aff", FullName: "Acme", Email: "ceo@acme.io", Program: "Alpha",
		Status: "approved", Price: &price, CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/admin/leads/export?status=approved", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads-")

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{leadsSheet}, book.GetSheetList())

	rows, err := book.GetRows(leadsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Full name", rows[0][2])
	assert.Equal(t, "Acme", rows[1][2])
	assert.Equal(t, "Approved", rows[1][7])
	assert.Equal(t, "150.5", rows[1][8])
	assert.Equal(t, "2024-03-01 09:30", rows[1][14])
}

func TestExportPayouts(t *testing.T) {
	svc := newStubService()
	aff := svc.users["u-aff"]
	svc.payouts = []models.PayoutWithUser{{
		PayoutRequest: models.PayoutRequest{
			ID: "p-1", AffiliateID: "u-aff", Amount: decimal.RequireFromString("120"), Method: "paypal",
			Details: models.PaymentSnapshot{MethodID: "pm_1", Details: models.PayPalDetails{Email: "aff@pp.com"}},
			Status:  "requested", CreatedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		User: &aff,
	}}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/admin/payouts/export", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(payoutsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "aff@example.com", rows[1][2])
	assert.Equal(t, "120", rows[1][3])
	assert.Equal(t, "PayPal (aff@pp.com)", rows[1][5])
	assert.Equal(t, "Pending", rows[1][6])
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(newStubService())

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
