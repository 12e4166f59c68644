package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/models"
)

// fakeStore is an in-memory db.Store. Errors can be injected per method name.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	leads   map[string]models.Lead
	payouts map[string]models.PayoutRequest
	errs    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]models.User{},
		leads:   map[string]models.Lead{},
		payouts: map[string]models.PayoutRequest{},
		errs:    map[string]error{},
	}
}

var _ db.Store = (*fakeStore)(nil)

func (f *fakeStore) fail(method string) error {
	return f.errs[method]
}

func (f *fakeStore) Probe(ctx context.Context) error { return f.fail("Probe") }

func (f *fakeStore) GetUser(ctx context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetUser"); err != nil {
		return models.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", id, db.ErrNotFound)
	}
	return u, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListUsers"); err != nil {
		return nil, err
	}
	var out []models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateUser"); err != nil {
		return models.User{}, err
	}
	if _, ok := f.users[u.ID]; ok {
		return models.User{}, db.ErrConflict
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, db.ErrNotFound
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.ProfileImage != nil {
		u.ProfileImage = *upd.ProfileImage
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) SetSuspended(ctx context.Context, id string, suspended bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.IsSuspended = suspended
	f.users[id] = u
	return nil
}

func (f *fakeStore) SavePaymentMethods(ctx context.Context, userID string, methods models.PaymentMethods) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SavePaymentMethods"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PaymentMethods = methods
	f.users[userID] = u
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.users, id)
	for lid, l := range f.leads {
		if l.AffiliateID == id {
			delete(f.leads, lid)
		}
	}
	for pid, p := range f.payouts {
		if p.AffiliateID == id {
			delete(f.payouts, pid)
		}
	}
	return nil
}

func (f *fakeStore) InsertLead(ctx context.Context, l models.Lead) (models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("InsertLead"); err != nil {
		return models.Lead{}, err
	}
	f.leads[l.ID] = l
	return l, nil
}

func (f *fakeStore) GetLead(ctx context.Context, id string) (models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return models.Lead{}, fmt.Errorf("get lead %s: %w", id, db.ErrNotFound)
	}
	return l, nil
}

func (f *fakeStore) ListLeads(ctx context.Context, flt models.LeadFilter) ([]models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListLeads"); err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(flt.Search))
	var out []models.Lead
	for _, l := range f.leads {
		switch {
		case flt.AffiliateID != "" && l.AffiliateID != flt.AffiliateID,
			flt.Status != "" && l.Status != flt.Status,
			flt.Program != "" && l.Program != flt.Program,
			flt.CallRequested != nil && l.CallRequested != *flt.CallRequested,
			search != "" && !strings.Contains(strings.ToLower(l.FullName), search) && !strings.Contains(strings.ToLower(l.Email), search):
			continue
		}
		out = append(out, l)
	}
	sortLeads(out, flt.Ascending)
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func sortLeads(leads []models.Lead, ascending bool) {
	sort.Slice(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

func (f *fakeStore) UpdateLeadReview(ctx context.Context, id string, r models.LeadReview) (models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return models.Lead{}, db.ErrNotFound
	}
	if r.Status != nil {
		l.Status = *r.Status
	}
	if r.ClearPrice {
		l.Price = nil
	} else if r.Price != nil {
		p := *r.Price
		l.Price = &p
	}
	if r.AdminNote != nil {
		l.AdminNote = *r.AdminNote
	}
	if r.CallMeetingLink != nil {
		l.CallMeetingLink = *r.CallMeetingLink
	}
	if r.CallRequested != nil {
		l.CallRequested = *r.CallRequested
	}
	f.leads[id] = l
	return l, nil
}

func (f *fakeStore) ListUnpaidApprovedLeads(ctx context.Context, affiliateID string) ([]models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListUnpaidApprovedLeads"); err != nil {
		return nil, err
	}
	var out []models.Lead
	for _, l := range f.leads {
		if l.AffiliateID == affiliateID && l.Status == constants.LEAD_STATUS_APPROVED && !l.Paid {
			out = append(out, l)
		}
	}
	sortLeads(out, true)
	return out, nil
}

func (f *fakeStore) MarkLeadsPaid(ctx context.Context, leadIDs []string, payoutID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("MarkLeadsPaid"); err != nil {
		return err
	}
	for _, id := range leadIDs {
		l, ok := f.leads[id]
		if !ok || l.Paid || l.Status != constants.LEAD_STATUS_APPROVED {
			return db.ErrConflict
		}
		l.Paid = true
		l.PayoutRequestID = models.NewNullString(payoutID)
		f.leads[id] = l
	}
	return nil
}

func (f *fakeStore) InsertPayoutRequest(ctx context.Context, p models.PayoutRequest) (models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("InsertPayoutRequest"); err != nil {
		return models.PayoutRequest{}, err
	}
	f.payouts[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetPayoutRequest(ctx context.Context, id string) (models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return models.PayoutRequest{}, fmt.Errorf("get payout %s: %w", id, db.ErrNotFound)
	}
	return p, nil
}

func (f *fakeStore) ListPayoutRequests(ctx context.Context, flt models.PayoutFilter) ([]models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListPayoutRequests"); err != nil {
		return nil, err
	}
	var out []models.PayoutRequest
	for _, p := range f.payouts {
		if flt.AffiliateID != "" && p.AffiliateID != flt.AffiliateID {
			continue
		}
		if flt.Status != "" && p.Status != flt.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) TransitionPayoutRequest(ctx context.Context, id, status, note string) (models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TransitionPayoutRequest"); err != nil {
		return models.PayoutRequest{}, err
	}
	p, ok := f.payouts[id]
	if !ok {
		return models.PayoutRequest{}, db.ErrNotFound
	}
	if p.Status != constants.PAYOUT_REQUEST_STATUS_REQUESTED {
		return models.PayoutRequest{}, db.ErrConflict
	}
	p.Status = status
	p.Note = note
	f.payouts[id] = p
	return p, nil
}

// txFakeStore adds snapshot-and-restore transactions on top of fakeStore.
type txFakeStore struct {
	*fakeStore
	commits, rollbacks int
}

var _ db.Transactional = (*txFakeStore)(nil)

func (t *txFakeStore) WithinTx(ctx context.Context, fn func(tx db.Store) error) error {
	t.mu.Lock()
	leads := make(map[string]models.Lead, len(t.leads))
	for k, v := range t.leads {
		leads[k] = v
	}
	payouts := make(map[string]models.PayoutRequest, len(t.payouts))
	for k, v := range t.payouts {
		payouts[k] = v
	}
	t.mu.Unlock()

	if err := fn(t.fakeStore); err != nil {
		t.mu.Lock()
		t.leads, t.payouts = leads, payouts
		t.mu.Unlock()
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}
