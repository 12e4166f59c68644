package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"LeadDesk/internal/models"
	"LeadDesk/internal/service"
)

type callRequest struct {
	CallMeetingLink string `json:"call_meeting_link"`
}

type suspendRequest struct {
	// Suspended defaults to true when omitted.
	Suspended *bool `json:"suspended"`
}

type payoutDecisionRequest struct {
	Note string `json:"note"`
}

type approvePayoutResponse struct {
	Payout     models.PayoutRequest `json:"payout"`
	Allocation models.Allocation    `json:"allocation"`
}

func (h *Handler) AdminOverview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	overview, err := h.svc.AdminOverview(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Overview retrieved", overview)
}

// --- leads ---

func (h *Handler) AdminListLeads(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	f, err := leadFilterFromQuery(r, true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads, err := h.svc.AdminListLeads(r.Context(), sess, f)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Leads retrieved", leads)
}

func (h *Handler) AdminGetLead(w http.ResponseWriter, r *http.Request) {
	h.GetLead(w, r)
}

func (h *Handler) ReviewLead(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var in service.ReviewLeadInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	lead, err := h.svc.ReviewLead(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Lead updated", lead)
}

func (h *Handler) RequestCall(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var req callRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	lead, err := h.svc.RequestCall(r.Context(), sess, chi.URLParam(r, "id"), req.CallMeetingLink)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Call requested", lead)
}

// CallQRCode answers with a PNG, not the JSON envelope.
func (h *Handler) CallQRCode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	png, err := h.svc.CallQRCode(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// --- users ---

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	users, err := h.svc.AdminListUsers(r.Context(), sess)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Users retrieved", users)
}

func (h *Handler) AdminUserDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.AdminUserDetail(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "User retrieved", detail)
}

func (h *Handler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var req suspendRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	suspended := true
	if req.Suspended != nil {
		suspended = *req.Suspended
	}
	if err := h.svc.SetSuspended(r.Context(), sess, chi.URLParam(r, "id"), suspended); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	msg := "User suspended"
	if !suspended {
		msg = "User reinstated"
	}
	writeJSONSuccess(w, msg, map[string]bool{"suspended": suspended})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "User deleted", nil)
}

// --- payouts ---

func (h *Handler) AdminListPayouts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	payouts, err := h.svc.AdminListPayouts(r.Context(), sess, payoutFilterFromQuery(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payouts retrieved", payouts)
}

func (h *Handler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var req payoutDecisionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payout, alloc, err := h.svc.ApprovePayout(r.Context(), sess, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payout approved", approvePayoutResponse{Payout: payout, Allocation: alloc})
}

func (h *Handler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	var req payoutDecisionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	payout, err := h.svc.RejectPayout(r.Context(), sess, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONSuccess(w, "Payout rejected", payout)
}
