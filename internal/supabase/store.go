package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/models"
)

// Store implements db.Store against PostgREST. Writes are independent HTTP
// calls; there is no transaction spanning several of them.
type Store struct {
	client *Client
	log    logrus.FieldLogger
}

var _ db.Store = (*Store)(nil)

func NewStore(client *Client, log logrus.FieldLogger) *Store {
	return &Store{client: client, log: log.WithField("store", "supabase")}
}

func first[T any](op string, rows []T) (T, error) {
	var zero T
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: %w", op, db.ErrNotFound)
	}
	return rows[0], nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) Probe(ctx context.Context) error {
	var rows []map[string]any
	return wrap("probe", s.client.From(constants.TABLE_USERS).Select("id").Limit(1).Execute(ctx, &rows))
}

// --- users ---

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.client.From(constants.TABLE_USERS).Select("*").Eq("id", id).Single().Execute(ctx, &u)
	return u, wrap("get user", err)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.client.From(constants.TABLE_USERS).Select("*").Order("created_at", false).Execute(ctx, &users)
	return users, wrap("list users", err)
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	methods := u.PaymentMethods
	if methods == nil {
		methods = models.PaymentMethods{}
	}
	row := map[string]any{
		"id":             u.ID,
		"email":          u.Email,
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"profile_image":  u.ProfileImage,
		"is_admin":       u.IsAdmin,
		"is_suspended":   u.IsSuspended,
		"payout_methods": methods,
		"created_at":     u.CreatedAt,
	}
	var created []models.User
	if err := s.client.From(constants.TABLE_USERS).Insert(ctx, row, &created); err != nil {
		return models.User{}, wrap("create user", err)
	}
	return first("create user", created)
}

func (s *Store) updateUser(ctx context.Context, op, id string, patch map[string]any) (models.User, error) {
	var rows []models.User
	if err := s.client.From(constants.TABLE_USERS).Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return models.User{}, wrap(op, err)
	}
	return first(op, rows)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	patch := map[string]any{}
	if upd.FirstName != nil {
		patch["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		patch["last_name"] = *upd.LastName
	}
	if upd.ProfileImage != nil {
		patch["profile_image"] = *upd.ProfileImage
	}
	if len(patch) == 0 {
		return s.GetUser(ctx, id)
	}
	return s.updateUser(ctx, "update profile", id, patch)
}

func (s *Store) SetSuspended(ctx context.Context, id string, suspended bool) error {
	_, err := s.updateUser(ctx, "set suspended", id, map[string]any{"is_suspended": suspended})
	return err
}

func (s *Store) SavePaymentMethods(ctx context.Context, userID string, methods models.PaymentMethods) error {
	if methods == nil {
		methods = models.PaymentMethods{}
	}
	var defaultType any
	if t := methods.DefaultType(); t != "" {
		defaultType = t
	}
	_, err := s.updateUser(ctx, "save payment methods", userID, map[string]any{
		"payout_methods":        methods,
		"default_payout_method": defaultType,
	})
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	var rows []models.User
	if err := s.client.From(constants.TABLE_USERS).Eq("id", id).Delete(ctx, &rows); err != nil {
		return wrap("delete user", err)
	}
	if _, err := first("delete user", rows); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// --- leads ---

func (s *Store) InsertLead(ctx context.Context, l models.Lead) (models.Lead, error) {
	row := map[string]any{
		"id":             l.ID,
		"affiliate_id":   l.AffiliateID,
		"full_name":      l.FullName,
		"email":          l.Email,
		"phone":          l.Phone,
		"website":        l.Website,
		"program":        l.Program,
		"lead_note":      l.LeadNote,
		"status":         l.Status,
		"price":          l.Price,
		"paid":           l.Paid,
		"call_requested": l.CallRequested,
		"created_at":     l.CreatedAt,
	}
	var created []models.Lead
	if err := s.client.From(constants.TABLE_LEADS).Insert(ctx, row, &created); err != nil {
		return models.Lead{}, wrap("insert lead", err)
	}
	return first("insert lead", created)
}

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	var l models.Lead
	err := s.client.From(constants.TABLE_LEADS).Select("*").Eq("id", id).Single().Execute(ctx, &l)
	return l, wrap("get lead", err)
}

// PostgREST reserves these characters inside or=() expressions.
var searchReplacer = strings.NewReplacer(",", " ", "(", " ", ")", " ", "\"", " ", "*", " ")

func (s *Store) ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, error) {
	q := s.client.From(constants.TABLE_LEADS).Select("*")
	if f.AffiliateID != "" {
		q.Eq("affiliate_id", f.AffiliateID)
	}
	if f.Status != "" {
		q.Eq("status", f.Status)
	}
	if f.Program != "" {
		q.Eq("program", f.Program)
	}
	if f.CallRequested != nil {
		q.Is("call_requested", *f.CallRequested)
	}
	if search := strings.TrimSpace(searchReplacer.Replace(f.Search)); search != "" {
		q.Or(fmt.Sprintf("full_name.ilike.*%s*,email.ilike.*%s*", search, search))
	}
	q.Order("created_at", f.Ascending).Order("id", f.Ascending).Limit(f.Limit)

	var leads []models.Lead
	return leads, wrap("list leads", q.Execute(ctx, &leads))
}

func (s *Store) UpdateLeadReview(ctx context.Context, id string, r models.LeadReview) (models.Lead, error) {
	patch := map[string]any{}
	if r.Status != nil {
		patch["status"] = *r.Status
	}
	if r.ClearPrice {
		patch["price"] = nil
	} else if r.Price != nil {
		patch["price"] = *r.Price
	}
	if r.AdminNote != nil {
		patch["admin_note"] = *r.AdminNote
	}
	if r.CallMeetingLink != nil {
		patch["call_meeting_link"] = *r.CallMeetingLink
	}
	if r.CallRequested != nil {
		patch["call_requested"] = *r.CallRequested
	}
	if len(patch) == 0 {
		return s.GetLead(ctx, id)
	}
	var rows []models.Lead
	if err := s.client.From(constants.TABLE_LEADS).Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return models.Lead{}, wrap("update lead", err)
	}
	return first("update lead", rows)
}

func (s *Store) ListUnpaidApprovedLeads(ctx context.Context, affiliateID string) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.client.From(constants.TABLE_LEADS).Select("*").
		Eq("affiliate_id", affiliateID).
		Eq("status", constants.LEAD_STATUS_APPROVED).
		Is("paid", false).
		Order("created_at", true).Order("id", true).
		Execute(ctx, &leads)
	return leads, wrap("list unpaid leads", err)
}

func (s *Store) MarkLeadsPaid(ctx context.Context, leadIDs []string, payoutID string) error {
	if len(leadIDs) == 0 {
		return nil
	}
	var rows []models.Lead
	err := s.client.From(constants.TABLE_LEADS).
		In("id", leadIDs).
		Eq("status", constants.LEAD_STATUS_APPROVED).
		Is("paid", false).
		Update(ctx, map[string]any{"paid": true, "payout_request_id": payoutID}, &rows)
	if err != nil {
		return wrap("mark leads paid", err)
	}
	if len(rows) != len(leadIDs) {
		s.log.WithFields(logrus.Fields{
			"payout_id": payoutID,
			"expected":  len(leadIDs),
			"updated":   len(rows),
		}).Warn("mark leads paid: row count mismatch")
		return fmt.Errorf("mark leads paid: %w", db.ErrConflict)
	}
	return nil
}

// --- payout requests ---

func (s *Store) InsertPayoutRequest(ctx context.Context, p models.PayoutRequest) (models.PayoutRequest, error) {
	row := map[string]any{
		"id":           p.ID,
		"affiliate_id": p.AffiliateID,
		"amount":       p.Amount,
		"method":       p.Method,
		"details":      p.Details,
		"status":       p.Status,
		"note":         p.Note,
		"created_at":   p.CreatedAt,
	}
	var created []models.PayoutRequest
	if err := s.client.From(constants.TABLE_PAYOUT_REQUESTS).Insert(ctx, row, &created); err != nil {
		return models.PayoutRequest{}, wrap("insert payout request", err)
	}
	return first("insert payout request", created)
}

func (s *Store) GetPayoutRequest(ctx context.Context, id string) (models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := s.client.From(constants.TABLE_PAYOUT_REQUESTS).Select("*").Eq("id", id).Single().Execute(ctx, &p)
	return p, wrap("get payout request", err)
}

func (s *Store) ListPayoutRequests(ctx context.Context, f models.PayoutFilter) ([]models.PayoutRequest, error) {
	q := s.client.From(constants.TABLE_PAYOUT_REQUESTS).Select("*")
	if f.AffiliateID != "" {
		q.Eq("affiliate_id", f.AffiliateID)
	}
	if f.Status != "" {
		q.Eq("status", f.Status)
	}
	q.Order("created_at", false).Order("id", false)

	var payouts []models.PayoutRequest
	return payouts, wrap("list payout requests", q.Execute(ctx, &payouts))
}

func (s *Store) TransitionPayoutRequest(ctx context.Context, id, status, note string) (models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	err := s.client.From(constants.TABLE_PAYOUT_REQUESTS).
		Eq("id", id).
		Eq("status", constants.PAYOUT_REQUEST_STATUS_REQUESTED).
		Update(ctx, map[string]any{"status": status, "note": note}, &rows)
	if err != nil {
		return models.PayoutRequest{}, wrap("transition payout request", err)
	}
	if len(rows) == 1 {
		s.log.WithFields(logrus.Fields{"payout_id": id, "status": status}).Info("payout request processed")
		return rows[0], nil
	}
	if _, err := s.GetPayoutRequest(ctx, id); err != nil {
		return models.PayoutRequest{}, err
	}
	return models.PayoutRequest{}, fmt.Errorf("transition payout request %s: %w", id, db.ErrConflict)
}
