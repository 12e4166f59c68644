package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"LeadDesk/internal/db"
	"LeadDesk/internal/models"
	"LeadDesk/internal/service"
	"LeadDesk/internal/session"
)

// Service is the business layer as used by the handlers.
type Service interface {
	UserEnsurer
	Programs() []string
	DatabaseStatus(ctx context.Context) service.DatabaseStatus

	Me(ctx context.Context, sess session.Session) (models.User, error)
	UpdateProfile(ctx context.Context, sess session.Session, upd models.ProfileUpdate) (models.User, error)
	AffiliateDashboard(ctx context.Context, sess session.Session) (service.AffiliateDashboard, error)

	SubmitLead(ctx context.Context, sess session.Session, in service.SubmitLeadInput) (models.Lead, error)
	ListMyLeads(ctx context.Context, sess session.Session, f models.LeadFilter) ([]models.Lead, error)
	GetLead(ctx context.Context, sess session.Session, id string) (models.Lead, error)

	ListPaymentMethods(ctx context.Context, sess session.Session) (models.PaymentMethods, error)
	AddPaymentMethod(ctx context.Context, sess session.Session, m models.PaymentMethod) (models.PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, sess session.Session, id string, m models.PaymentMethod) (models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, sess session.Session, id string) (models.PaymentMethods, error)
	SetDefaultPaymentMethod(ctx context.Context, sess session.Session, id string) (models.PaymentMethods, error)

	PayoutSummary(ctx context.Context, sess session.Session) (service.PayoutSummary, error)
	RequestPayout(ctx context.Context, sess session.Session, in service.RequestPayoutInput) (models.PayoutRequest, error)

	AdminOverview(ctx context.Context, sess session.Session) (service.AdminOverview, error)
	AdminListLeads(ctx context.Context, sess session.Session, f models.LeadFilter) ([]models.Lead, error)
	ReviewLead(ctx context.Context, sess session.Session, id string, in service.ReviewLeadInput) (models.Lead, error)
	RequestCall(ctx context.Context, sess session.Session, id, meetingLink string) (models.Lead, error)
	CallQRCode(ctx context.Context, sess session.Session, id string) ([]byte, error)

	AdminListUsers(ctx context.Context, sess session.Session) ([]service.UserSummary, error)
	AdminUserDetail(ctx context.Context, sess session.Session, id string) (service.UserDetail, error)
	SetSuspended(ctx context.Context, sess session.Session, id string, suspended bool) error
	DeleteUser(ctx context.Context, sess session.Session, id string) error

	AdminListPayouts(ctx context.Context, sess session.Session, f models.PayoutFilter) ([]models.PayoutWithUser, error)
	ApprovePayout(ctx context.Context, sess session.Session, id, note string) (models.PayoutRequest, models.Allocation, error)
	RejectPayout(ctx context.Context, sess session.Session, id, note string) (models.PayoutRequest, error)
}

var _ Service = (*service.Service)(nil)

// Handler serves the HTTP API on top of the service layer.
type Handler struct {
	svc Service
	log logrus.FieldLogger
}

// jsonResponse is the envelope of every JSON reply.
type jsonResponse struct {
	Status  string      `json:"status"` // "success" or "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, resp jsonResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, jsonResponse{Status: "success", Message: message, Data: data})
}

func writeJSONCreated(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, jsonResponse{Status: "success", Message: message, Data: data})
}

// writeServiceError maps service and store errors onto status codes.
// Unexpected failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var validationErr *service.ValidationError
	var partialErr *service.PartialApprovalError
	switch {
	case errors.As(err, &partialErr):
		log.WithError(err).WithField("payout_id", partialErr.PayoutID).Error("payout approved without marking leads paid")
		writeJSONError(w, http.StatusBadGateway, "Payout was approved but its leads could not be marked paid; manual reconciliation is required")
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, db.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrInvalidTransition):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, db.ErrConflict):
		writeJSONError(w, http.StatusConflict, "Conflict: the record was changed by another request")
	default:
		log.WithError(err).Error("request failed")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON body into dst. An empty body is an error unless
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized: no session")
	}
	return sess, ok
}

const maxListLimit = 500

// leadFilterFromQuery reads status, program, search and limit. Admin
// listings also accept affiliate_id and call_requested.
func leadFilterFromQuery(r *http.Request, admin bool) (models.LeadFilter, error) {
	q := r.URL.Query()
	f := models.LeadFilter{
		Status:  strings.TrimSpace(q.Get("status")),
		Program: strings.TrimSpace(q.Get("program")),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		f.Limit = n
	}
	if !admin {
		return f, nil
	}
	f.AffiliateID = strings.TrimSpace(q.Get("affiliate_id"))
	if v := q.Get("call_requested"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("call_requested must be true or false")
		}
		f.CallRequested = &b
	}
	return f, nil
}

func payoutFilterFromQuery(r *http.Request) models.PayoutFilter {
	q := r.URL.Query()
	return models.PayoutFilter{
		AffiliateID: strings.TrimSpace(q.Get("affiliate_id")),
		Status:      strings.TrimSpace(q.Get("status")),
	}
}

// --- public ---

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONSuccess(w, "ok", nil)
}

// DatabaseHealth reports the store probe. Only a failed probe is a 503;
// missing tables still answer 200 so the UI can show a setup hint.
func (h *Handler) DatabaseHealth(w http.ResponseWriter, r *http.Request) {
	status := h.svc.DatabaseStatus(r.Context())
	if status.Status == service.DBStatusError {
		writeJSON(w, http.StatusServiceUnavailable, jsonResponse{Status: "error", Message: "Database unavailable", Data: status})
		return
	}
	writeJSONSuccess(w, "Database status", status)
}

func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	writeJSONSuccess(w, "Programs retrieved", h.svc.Programs())
}

// --- profile ---

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	user, err := h.svc.Me(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Profile retrieved", user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var upd models.ProfileUpdate
	if err := decodeJSON(w, r, &upd, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), sess, upd)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Profile updated", user)
}

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	dash, err := h.svc.AffiliateDashboard(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Dashboard retrieved", dash)
}

// --- leads ---

func (h *Handler) ListMyLeads(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	f, err := leadFilterFromQuery(r, false)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, err := h.svc.ListMyLeads(r.Context(), sess, f)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Leads retrieved", leads)
}

func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var in service.SubmitLeadInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	lead, err := h.svc.SubmitLead(r.Context(), sess, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONCreated(w, "Lead submitted", lead)
}

func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	lead, err := h.svc.GetLead(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Lead retrieved", lead)
}

// --- payment methods ---

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	methods, err := h.svc.ListPaymentMethods(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payment methods retrieved", methods)
}

func (h *Handler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var m models.PaymentMethod
	if err := decodeJSON(w, r, &m, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payment method: "+err.Error())
		return
	}
	added, err := h.svc.AddPaymentMethod(r.Context(), sess, m)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONCreated(w, "Payment method added", added)
}

func (h *Handler) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var m models.PaymentMethod
	if err := decodeJSON(w, r, &m, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid payment method: "+err.Error())
		return
	}
	updated, err := h.svc.UpdatePaymentMethod(r.Context(), sess, chi.URLParam(r, "id"), m)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payment method updated", updated)
}

func (h *Handler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	methods, err := h.svc.DeletePaymentMethod(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payment method removed", methods)
}

func (h *Handler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	methods, err := h.svc.SetDefaultPaymentMethod(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Default payment method set", methods)
}

// --- payouts ---

func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.PayoutSummary(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payouts retrieved", summary)
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var in service.RequestPayoutInput
	if err := decodeJSON(w, r, &in, true); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payout, err := h.svc.RequestPayout(r.Context(), sess, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONCreated(w, "Payout requested", payout)
}
