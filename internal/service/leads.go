package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/formatters"
	"LeadDesk/internal/metrics"
	"LeadDesk/internal/models"
	"LeadDesk/internal/session"
	"LeadDesk/internal/utils"
)

type SubmitLeadInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
	Program  string `json:"program"`
	LeadNote string `json:"lead_note"`
}

// SubmitLead stores a new pending lead owned by the caller.
func (s *Service) SubmitLead(ctx context.Context, sess session.Session, in SubmitLeadInput) (models.Lead, error) {
	if err := requireActive(sess); err != nil {
		return models.Lead{}, err
	}

	lead := models.Lead{
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.TrimSpace(in.Email),
		Website:  utils.NormalizeWebsite(in.Website),
		Program:  strings.TrimSpace(in.Program),
		LeadNote: strings.TrimSpace(in.LeadNote),
	}
	if lead.FullName == "" {
		return models.Lead{}, invalid("full_name", "is required")
	}
	if err := utils.ValidateEmail(lead.Email); err != nil {
		return models.Lead{}, invalid("email", "is not a valid email address")
	}
	phone, err := utils.ValidatePhoneNumber(in.Phone)
	if err != nil {
		return models.Lead{}, invalid("phone", "is not a valid phone number")
	}
	lead.Phone = phone
	if !utils.IsKnownProgram(lead.Program, s.programs) {
		return models.Lead{}, invalid("program", "must be one of: %s", strings.Join(s.programs, ", "))
	}

	lead.ID = s.newID()
	lead.AffiliateID = sess.UserID
	lead.Status = constants.LEAD_STATUS_PENDING
	lead.CreatedAt = s.now()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.store.InsertLead(ctx, lead)
	if err != nil {
		return models.Lead{}, fmt.Errorf("submit lead: %w", err)
	}
	metrics.RecordLeadSubmitted(created.Program)
	s.log.WithFields(logrus.Fields{
		"lead_id":      created.ID,
		"affiliate_id": created.AffiliateID,
		"program":      created.Program,
	}).Info("lead submitted")

	affiliate := models.User{ID: sess.UserID, Email: sess.Email}
	if u, err := s.store.GetUser(ctx, sess.UserID); err == nil {
		affiliate = u
	}
	s.notify(ctx, formatters.FormatLeadSubmitted(affiliate, created))
	return created, nil
}

// ListMyLeads returns the caller's leads newest first.
func (s *Service) ListMyLeads(ctx context.Context, sess session.Session, f models.LeadFilter) ([]models.Lead, error) {
	if err := requireActive(sess); err != nil {
		return nil, err
	}
	f.AffiliateID = sess.UserID
	f.Ascending = false

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return emptyIfMissing(s.store.ListLeads(ctx, f))
}

// GetLead returns one lead to its owner or to an admin.
func (s *Service) GetLead(ctx context.Context, sess session.Session, id string) (models.Lead, error) {
	if err := requireActive(sess); err != nil {
		return models.Lead{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}
	if !sess.IsAdmin && lead.AffiliateID != sess.UserID {
		return models.Lead{}, ErrForbidden
	}
	return lead, nil
}

// AdminListLeads lists leads across all affiliates, newest first.
func (s *Service) AdminListLeads(ctx context.Context, sess session.Session, f models.LeadFilter) ([]models.Lead, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if _, ok := constants.LeadStatusDisplayMap[f.Status]; !ok {
			return nil, invalid("status", "unknown lead status %q", f.Status)
		}
	}
	f.Ascending = false

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return emptyIfMissing(s.store.ListLeads(ctx, f))
}

type ReviewLeadInput struct {
	Status          *string          `json:"status"`
	Price           *decimal.Decimal `json:"price"`
	AdminNote       *string          `json:"admin_note"`
	CallMeetingLink *string          `json:"call_meeting_link"`
}

// ReviewLead applies an admin decision. A price is kept only on approved
// leads, a decided lead keeps its status, and a paid lead keeps its price.
func (s *Service) ReviewLead(ctx context.Context, sess session.Session, id string, in ReviewLeadInput) (models.Lead, error) {
	if err := requireAdmin(sess); err != nil {
		return models.Lead{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}

	status := lead.Status
	if in.Status != nil {
		status = strings.TrimSpace(*in.Status)
		if _, ok := constants.LeadStatusDisplayMap[status]; !ok {
			return models.Lead{}, invalid("status", "unknown lead status %q", status)
		}
	}
	if in.Price != nil && in.Price.IsNegative() {
		return models.Lead{}, invalid("price", "must not be negative")
	}

	// pending -> approved|rejected; both are final.
	if lead.Status != constants.LEAD_STATUS_PENDING && status != lead.Status {
		return models.Lead{}, fmt.Errorf("%w: lead %s is already %s", ErrInvalidTransition, id, lead.Status)
	}
	if lead.Paid && in.Price != nil && !in.Price.Equal(lead.PriceOrZero()) {
		return models.Lead{}, fmt.Errorf("%w: price of paid lead %s is frozen", ErrInvalidTransition, id)
	}

	review := models.LeadReview{AdminNote: in.AdminNote}
	if in.Status != nil {
		review.Status = &status
	}
	if status == constants.LEAD_STATUS_APPROVED {
		if in.Price != nil && !lead.Paid {
			review.Price = in.Price
		}
	} else if lead.Price != nil {
		review.ClearPrice = true
	}
	if in.CallMeetingLink != nil {
		link := strings.TrimSpace(*in.CallMeetingLink)
		if link != "" {
			if link, err = utils.ValidateMeetingLink(link); err != nil {
				return models.Lead{}, invalid("call_meeting_link", "%v", err)
			}
		}
		review.CallMeetingLink = &link
	}

	updated, err := s.store.UpdateLeadReview(ctx, id, review)
	if err != nil {
		return models.Lead{}, fmt.Errorf("review lead: %w", err)
	}
	if in.Status != nil {
		metrics.RecordLeadReviewed(updated.Status)
	}
	s.log.WithFields(logrus.Fields{
		"lead_id":  id,
		"status":   updated.Status,
		"admin_id": sess.UserID,
	}).Info("lead reviewed")
	return updated, nil
}

// RequestCall attaches a meeting link to the lead and flags the call as requested.
func (s *Service) RequestCall(ctx context.Context, sess session.Session, id, meetingLink string) (models.Lead, error) {
	if err := requireAdmin(sess); err != nil {
		return models.Lead{}, err
	}
	link, err := utils.ValidateMeetingLink(meetingLink)
	if err != nil {
		return models.Lead{}, invalid("call_meeting_link", "%v", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	requested := true
	updated, err := s.store.UpdateLeadReview(ctx, id, models.LeadReview{
		CallMeetingLink: &link,
		CallRequested:   &requested,
	})
	if err != nil {
		return models.Lead{}, fmt.Errorf("request call: %w", err)
	}
	s.log.WithField("lead_id", id).Info("call requested")
	return updated, nil
}

// CallQRCode renders the lead's meeting link as a PNG QR code.
func (s *Service) CallQRCode(ctx context.Context, sess session.Session, id string) ([]byte, error) {
	lead, err := s.GetLead(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if lead.CallMeetingLink == "" {
		return nil, invalid("call_meeting_link", "lead has no meeting link")
	}
	return utils.GenerateQRCode(lead.CallMeetingLink)
}
