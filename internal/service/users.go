package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/earnings"
	"LeadDesk/internal/models"
	"LeadDesk/internal/session"
	"LeadDesk/internal/utils"
)

// EnsureUser returns the user for a verified token, creating the row on the
// first authenticated request. Without a users table the caller still gets an
// unsaved user so read-only pages keep working.
func (s *Service) EnsureUser(ctx context.Context, claims session.Claims) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.GetUser(ctx, claims.Subject)
	if err == nil {
		return u, nil
	}
	if db.IsRelationMissing(err) {
		s.log.WithField("user_id", claims.Subject).Warn("users table missing, serving unsaved user")
		return models.User{ID: claims.Subject, Email: claims.Email, CreatedAt: s.now()}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	created, err := s.store.CreateUser(ctx, models.User{
		ID:             claims.Subject,
		Email:          claims.Email,
		PaymentMethods: models.PaymentMethods{},
		CreatedAt:      s.now(),
	})
	switch {
	case err == nil:
		s.log.WithFields(logrus.Fields{"user_id": created.ID, "email": created.Email}).Info("user created")
		return created, nil
	case errors.Is(err, db.ErrConflict):
		// Another request created it first.
		return s.store.GetUser(ctx, claims.Subject)
	case db.IsRelationMissing(err):
		return models.User{ID: claims.Subject, Email: claims.Email, CreatedAt: s.now()}, nil
	}
	return models.User{}, fmt.Errorf("create user: %w", err)
}

// sessionUser loads the caller's row. Without a users table it falls back to
// an unsaved user built from the session, matching EnsureUser.
func (s *Service) sessionUser(ctx context.Context, sess session.Session) (models.User, error) {
	u, err := s.store.GetUser(ctx, sess.UserID)
	if db.IsRelationMissing(err) {
		return models.User{ID: sess.UserID, Email: sess.Email, PaymentMethods: models.PaymentMethods{}}, nil
	}
	return u, err
}

func (s *Service) Me(ctx context.Context, sess session.Session) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.sessionUser(ctx, sess)
}

func (s *Service) UpdateProfile(ctx context.Context, sess session.Session, upd models.ProfileUpdate) (models.User, error) {
	if err := requireActive(sess); err != nil {
		return models.User{}, err
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	upd.FirstName = trim(upd.FirstName)
	upd.LastName = trim(upd.LastName)
	upd.ProfileImage = trim(upd.ProfileImage)
	if upd.ProfileImage != nil && *upd.ProfileImage != "" && !utils.IsHTTPURL(*upd.ProfileImage) {
		return models.User{}, invalid("profile_image", "must be an http(s) URL")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	u, err := s.store.UpdateProfile(ctx, sess.UserID, upd)
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// UserSummary is one row of the admin user list.
type UserSummary struct {
	models.User
	Stats          models.Stats `json:"stats"`
	PayoutCount    int          `json:"payout_count"`
	PendingPayouts int          `json:"pending_payouts"`
}

// UserDetail is the admin view of a single user.
type UserDetail struct {
	User    models.User            `json:"user"`
	Stats   models.Stats           `json:"stats"`
	Leads   []models.Lead          `json:"leads"`
	Payouts []models.PayoutRequest `json:"payouts"`
}

func groupLeads(leads []models.Lead) map[string][]models.Lead {
	out := make(map[string][]models.Lead)
	for _, l := range leads {
		out[l.AffiliateID] = append(out[l.AffiliateID], l)
	}
	return out
}

func (s *Service) AdminListUsers(ctx context.Context, sess session.Session) ([]UserSummary, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := emptyIfMissing(s.store.ListUsers(ctx))
	if err != nil {
		return nil, err
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{}))
	if err != nil {
		return nil, err
	}
	payouts, err := emptyIfMissing(s.store.ListPayoutRequests(ctx, models.PayoutFilter{}))
	if err != nil {
		return nil, err
	}

	byUser := groupLeads(leads)
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		sum := UserSummary{User: u, Stats: earnings.Aggregate(byUser[u.ID])}
		for _, p := range payouts {
			if p.AffiliateID != u.ID {
				continue
			}
			sum.PayoutCount++
			if p.Status == constants.PAYOUT_REQUEST_STATUS_REQUESTED {
				sum.PendingPayouts++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) AdminUserDetail(ctx context.Context, sess session.Session, id string) (UserDetail, error) {
	if err := requireAdmin(sess); err != nil {
		return UserDetail{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	leads, err := emptyIfMissing(s.store.ListLeads(ctx, models.LeadFilter{AffiliateID: id}))
	if err != nil {
		return UserDetail{}, err
	}
	payouts, err := emptyIfMissing(s.store.ListPayoutRequests(ctx, models.PayoutFilter{AffiliateID: id}))
	if err != nil {
		return UserDetail{}, err
	}
	return UserDetail{User: u, Stats: earnings.Aggregate(leads), Leads: leads, Payouts: payouts}, nil
}

func (s *Service) SetSuspended(ctx context.Context, sess session.Session, id string, suspended bool) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if id == sess.UserID {
		return fmt.Errorf("%w: admins cannot suspend themselves", ErrForbidden)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.SetSuspended(ctx, id, suspended); err != nil {
		return fmt.Errorf("set suspended: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "suspended": suspended, "admin_id": sess.UserID}).Info("user suspension changed")
	return nil
}

// DeleteUser removes the user; their leads and payout requests go with them.
func (s *Service) DeleteUser(ctx context.Context, sess session.Session, id string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if id == sess.UserID {
		return fmt.Errorf("%w: admins cannot delete themselves", ErrForbidden)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID}).Warn("user deleted")
	return nil
}
