package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/earnings"
	"LeadDesk/internal/models"
	"LeadDesk/internal/session"
)

type AffiliateDashboard struct {
	Stats            models.Stats  `json:"stats"`
	RecentLeads      []models.Lead `json:"recent_leads"`
	HasPaymentMethod bool          `json:"has_payment_method"`
	CanRequestPayout bool          `json:"can_request_payout"`
}

func (s *Service) AffiliateDashboard(ctx context.Context, sess session.Session) (AffiliateDashboard, error) {
	if err := requireActive(sess); err != nil {
		return AffiliateDashboard{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return AffiliateDashboard{}, err
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{AffiliateID: sess.UserID}))
	if err != nil {
		return AffiliateDashboard{}, err
	}

	stats := earnings.Aggregate(leads)
	recent := leads
	if len(recent) > constants.RecentLeadsOnDashboard {
		recent = recent[:constants.RecentLeadsOnDashboard]
	}
	hasMethod := len(user.PaymentMethods) > 0
	return AffiliateDashboard{
		Stats:            stats,
		RecentLeads:      recent,
		HasPaymentMethod: hasMethod,
		CanRequestPayout: earnings.CanRequestPayout(stats.UnpaidEarnings, hasMethod),
	}, nil
}

type AffiliateRank struct {
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	Email  string       `json:"email"`
	Stats  models.Stats `json:"stats"`
}

type AdminOverview struct {
	TotalUsers     int             `json:"total_users"`
	TotalLeads     int             `json:"total_leads"`
	PendingLeads   int             `json:"pending_leads"`
	ApprovedLeads  int             `json:"approved_leads"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	UnpaidEarnings decimal.Decimal `json:"unpaid_earnings"`
	TotalPayouts   int             `json:"total_payouts"`
	PendingPayouts int             `json:"pending_payouts"`
	TopAffiliates  []AffiliateRank `json:"top_affiliates"`
}

func (s *Service) AdminOverview(ctx context.Context, sess session.Session) (AdminOverview, error) {
	if err := requireAdmin(sess); err != nil {
		return AdminOverview{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := emptyIfMissing(s.store.ListUsers(ctx))
	if err != nil {
		return AdminOverview{}, err
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{}))
	if err != nil {
		return AdminOverview{}, err
	}
	payouts, err := emptyIfMissing(s.store.ListPayoutRequests(ctx, models.PayoutFilter{}))
	if err != nil {
		return AdminOverview{}, err
	}

	all := earnings.Aggregate(leads)
	ov := AdminOverview{
		TotalUsers:     len(users),
		TotalLeads:     all.Total,
		PendingLeads:   all.Pending,
		ApprovedLeads:  all.Approved,
		TotalEarnings:  all.TotalEarnings,
		UnpaidEarnings: all.UnpaidEarnings,
		TotalPayouts:   len(payouts),
		TopAffiliates:  []AffiliateRank{},
	}
	for _, p := range payouts {
		if p.Status == constants.PAYOUT_REQUEST_STATUS_REQUESTED {
			ov.PendingPayouts++
		}
	}

	byUser := groupLeads(leads)
	for _, u := range users {
		own := byUser[u.ID]
		if len(own) == 0 {
			continue
		}
		ov.TopAffiliates = append(ov.TopAffiliates, AffiliateRank{
			UserID: u.ID,
			Name:   u.FullName(),
			Email:  u.Email,
			Stats:  earnings.Aggregate(own),
		})
	}
	sort.SliceStable(ov.TopAffiliates, func(i, j int) bool {
		a, b := ov.TopAffiliates[i].Stats.TotalEarnings, ov.TopAffiliates[j].Stats.TotalEarnings
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return ov.TopAffiliates[i].UserID < ov.TopAffiliates[j].UserID
	})
	if len(ov.TopAffiliates) > constants.TopAffiliatesOnOverview {
		ov.TopAffiliates = ov.TopAffiliates[:constants.TopAffiliatesOnOverview]
	}
	return ov, nil
}

const (
	DBStatusConnected = "connected"
	DBStatusNoTables  = "no-tables"
	DBStatusError     = "error"
)

type DatabaseStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DatabaseStatus probes the store. It never returns an error itself.
func (s *Service) DatabaseStatus(ctx context.Context) DatabaseStatus {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.store.Probe(ctx)
	switch {
	case err == nil:
		return DatabaseStatus{Status: DBStatusConnected}
	case db.IsRelationMissing(err):
		return DatabaseStatus{Status: DBStatusNoTables, Error: err.Error()}
	}
	s.log.WithError(err).Warn("database probe failed")
	return DatabaseStatus{Status: DBStatusError, Error: err.Error()}
}
