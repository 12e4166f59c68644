package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/earnings"
	"LeadDesk/internal/formatters"
	"LeadDesk/internal/metrics"
	"LeadDesk/internal/models"
	"LeadDesk/internal/payments"
	"LeadDesk/internal/session"
)

type RequestPayoutInput struct {
	// PaymentMethodID is optional; the default method is used when empty.
	PaymentMethodID string `json:"payment_method_id"`
}

// RequestPayout creates a payout request for the caller's whole unpaid
// balance, copying the chosen payment method into the request.
func (s *Service) RequestPayout(ctx context.Context, sess session.Session, in RequestPayoutInput) (models.PayoutRequest, error) {
	if err := requireActive(sess); err != nil {
		return models.PayoutRequest{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return models.PayoutRequest{}, fmt.Errorf("request payout: %w", err)
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{AffiliateID: sess.UserID}))
	if err != nil {
		return models.PayoutRequest{}, fmt.Errorf("request payout: %w", err)
	}
	stats := earnings.Aggregate(leads)

	if !earnings.CanRequestPayout(stats.UnpaidEarnings, len(user.PaymentMethods) > 0) {
		if len(user.PaymentMethods) == 0 {
			return models.PayoutRequest{}, invalid("payment_method", "add a payment method before requesting a payout")
		}
		return models.PayoutRequest{}, invalid("amount", "unpaid earnings of %s are below the minimum payout of %s",
			stats.UnpaidEarnings.StringFixed(2), earnings.MinPayoutAmount.StringFixed(2))
	}

	method, err := payments.Choose(user.PaymentMethods, strings.TrimSpace(in.PaymentMethodID))
	if err != nil {
		return models.PayoutRequest{}, invalid("payment_method_id", "%v", err)
	}

	created, err := s.store.InsertPayoutRequest(ctx, models.PayoutRequest{
		ID:          s.newID(),
		AffiliateID: user.ID,
		Amount:      stats.UnpaidEarnings,
		Method:      method.Type(),
		Details:     payments.Snapshot(method),
		Status:      constants.PAYOUT_REQUEST_STATUS_REQUESTED,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return models.PayoutRequest{}, fmt.Errorf("request payout: %w", err)
	}
	metrics.RecordPayoutRequested()
	s.log.WithFields(logrus.Fields{
		"payout_id":    created.ID,
		"affiliate_id": created.AffiliateID,
		"amount":       created.Amount.String(),
		"method":       created.Method,
	}).Info("payout requested")
	s.notify(ctx, formatters.FormatPayoutRequested(user, created))
	return created, nil
}

func (s *Service) requestedPayout(ctx context.Context, id string) (models.PayoutRequest, error) {
	p, err := s.store.GetPayoutRequest(ctx, id)
	if err != nil {
		return models.PayoutRequest{}, err
	}
	if p.Status != constants.PAYOUT_REQUEST_STATUS_REQUESTED {
		return models.PayoutRequest{}, fmt.Errorf("%w: payout %s is already %s", ErrInvalidTransition, id, p.Status)
	}
	return p, nil
}

// allocate marks the affiliate's oldest unpaid leads paid, first-fit against the payout amount.
func (s *Service) allocate(ctx context.Context, st db.Store, p models.PayoutRequest) (models.Allocation, error) {
	leads, err := st.ListUnpaidApprovedLeads(ctx, p.AffiliateID)
	if err != nil {
		return models.Allocation{}, err
	}
	alloc := earnings.Allocate(leads, p.Amount)
	if err := st.MarkLeadsPaid(ctx, alloc.PaidLeadIDs, p.ID); err != nil {
		return models.Allocation{}, err
	}
	if alloc.Remaining.IsPositive() {
		s.log.WithFields(logrus.Fields{
			"payout_id": p.ID,
			"remaining": alloc.Remaining.String(),
		}).Warn("payout amount not fully allocated to leads")
	}
	return alloc, nil
}

// ApprovePayout approves a requested payout and marks leads paid. With a
// transactional store both steps commit together; otherwise a failure after
// the status change is reported as *PartialApprovalError.
func (s *Service) ApprovePayout(ctx context.Context, sess session.Session, id, note string) (models.PayoutRequest, models.Allocation, error) {
	if err := requireAdmin(sess); err != nil {
		return models.PayoutRequest{}, models.Allocation{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.requestedPayout(ctx, id); err != nil {
		return models.PayoutRequest{}, models.Allocation{}, err
	}
	note = strings.TrimSpace(note)

	var approved models.PayoutRequest
	var alloc models.Allocation

	if tx, ok := s.store.(db.Transactional); ok {
		err := tx.WithinTx(ctx, func(st db.Store) error {
			var err error
			approved, err = st.TransitionPayoutRequest(ctx, id, constants.PAYOUT_REQUEST_STATUS_APPROVED, note)
			if err != nil {
				return err
			}
			alloc, err = s.allocate(ctx, st, approved)
			return err
		})
		if err != nil {
			return models.PayoutRequest{}, models.Allocation{}, fmt.Errorf("approve payout: %w", err)
		}
	} else {
		var err error
		approved, err = s.store.TransitionPayoutRequest(ctx, id, constants.PAYOUT_REQUEST_STATUS_APPROVED, note)
		if err != nil {
			return models.PayoutRequest{}, models.Allocation{}, fmt.Errorf("approve payout: %w", err)
		}
		alloc, err = s.allocate(ctx, s.store, approved)
		if err != nil {
			s.log.WithError(err).WithField("payout_id", id).Error("payout approved but lead reconciliation failed")
			metrics.RecordPayoutDecision("partial", 0)
			s.notify(ctx, formatters.FormatPartialApproval(approved, err))
			return approved, models.Allocation{}, &PartialApprovalError{PayoutID: id, Err: err}
		}
	}

	metrics.RecordPayoutDecision(constants.PAYOUT_REQUEST_STATUS_APPROVED, len(alloc.PaidLeadIDs))
	s.log.WithFields(logrus.Fields{
		"payout_id":  id,
		"admin_id":   sess.UserID,
		"leads_paid": len(alloc.PaidLeadIDs),
	}).Info("payout approved")
	s.notify(ctx, formatters.FormatPayoutDecision(approved, &alloc))
	return approved, alloc, nil
}

// RejectPayout closes a requested payout without touching any lead.
func (s *Service) RejectPayout(ctx context.Context, sess session.Session, id, note string) (models.PayoutRequest, error) {
	if err := requireAdmin(sess); err != nil {
		return models.PayoutRequest{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.requestedPayout(ctx, id); err != nil {
		return models.PayoutRequest{}, err
	}
	rejected, err := s.store.TransitionPayoutRequest(ctx, id, constants.PAYOUT_REQUEST_STATUS_REJECTED, strings.TrimSpace(note))
	if err != nil {
		return models.PayoutRequest{}, fmt.Errorf("reject payout: %w", err)
	}
	metrics.RecordPayoutDecision(constants.PAYOUT_REQUEST_STATUS_REJECTED, 0)
	s.log.WithFields(logrus.Fields{"payout_id": id, "admin_id": sess.UserID}).Info("payout rejected")
	s.notify(ctx, formatters.FormatPayoutDecision(rejected, nil))
	return rejected, nil
}

// PayoutSummary backs the affiliate payouts page.
type PayoutSummary struct {
	UnpaidEarnings   decimal.Decimal        `json:"unpaid_earnings"`
	MinimumAmount    decimal.Decimal        `json:"minimum_amount"`
	HasPaymentMethod bool                   `json:"has_payment_method"`
	CanRequestPayout bool                   `json:"can_request_payout"`
	Requests         []models.PayoutRequest `json:"requests"`
}

func (s *Service) PayoutSummary(ctx context.Context, sess session.Session) (PayoutSummary, error) {
	if err := requireActive(sess); err != nil {
		return PayoutSummary{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return PayoutSummary{}, err
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{AffiliateID: sess.UserID}))
	if err != nil {
		return PayoutSummary{}, err
	}
	requests, err := emptyIfMissing(s.store.ListPayoutRequests(ctx, models.PayoutFilter{AffiliateID: sess.UserID}))
	if err != nil {
		return PayoutSummary{}, err
	}

	unpaid := earnings.Aggregate(leads).UnpaidEarnings
	hasMethod := len(user.PaymentMethods) > 0
	return PayoutSummary{
		UnpaidEarnings:   unpaid,
		MinimumAmount:    earnings.MinPayoutAmount,
		HasPaymentMethod: hasMethod,
		CanRequestPayout: earnings.CanRequestPayout(unpaid, hasMethod),
		Requests:         requests,
	}, nil
}

// AdminListPayouts lists payout requests newest first with their owners attached.
func (s *Service) AdminListPayouts(ctx context.Context, sess session.Session, f models.PayoutFilter) ([]models.PayoutWithUser, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if _, ok := constants.PayoutStatusDisplayMap[f.Status]; !ok {
			return nil, invalid("status", "unknown payout status %q", f.Status)
		}
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	payouts, err := emptyIfMissing(s.store.ListPayoutRequests(ctx, f))
	if err != nil {
		return nil, err
	}
	users, err := emptyIfMissing(s.store.ListUsers(ctx))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	out := make([]models.PayoutWithUser, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, models.PayoutWithUser{PayoutRequest: p, User: byID[p.AffiliateID]})
	}
	return out, nil
}

// IsPartialApproval reports whether err came from a half-applied approval.
func IsPartialApproval(err error) bool {
	var perr *PartialApprovalError
	return errors.As(err, &perr)
}
