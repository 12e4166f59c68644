package db

import (
	"context"
	"errors"

	"LeadDesk/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrRelationMissing means the backing table does not exist yet.
	ErrRelationMissing = errors.New("relation does not exist")
	// ErrConflict means a guarded write lost a race or hit a unique key.
	ErrConflict = errors.New("conflicting update")
)

// Store is the record store used by the service layer.
type Store interface {
	// Probe checks that the store is reachable and its tables exist.
	Probe(ctx context.Context) error

	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error)
	SetSuspended(ctx context.Context, id string, suspended bool) error
	SavePaymentMethods(ctx context.Context, userID string, methods models.PaymentMethods) error
	DeleteUser(ctx context.Context, id string) error

	InsertLead(ctx context.Context, l models.Lead) (models.Lead, error)
	GetLead(ctx context.Context, id string) (models.Lead, error)
	ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, error)
	UpdateLeadReview(ctx context.Context, id string, r models.LeadReview) (models.Lead, error)
	// ListUnpaidApprovedLeads returns approved, unpaid leads oldest first.
	ListUnpaidApprovedLeads(ctx context.Context, affiliateID string) ([]models.Lead, error)
	MarkLeadsPaid(ctx context.Context, leadIDs []string, payoutID string) error

	InsertPayoutRequest(ctx context.Context, p models.PayoutRequest) (models.PayoutRequest, error)
	GetPayoutRequest(ctx context.Context, id string) (models.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, f models.PayoutFilter) ([]models.PayoutRequest, error)
	// TransitionPayoutRequest moves a request out of "requested". It returns
	// ErrConflict when the request is no longer in that state.
	TransitionPayoutRequest(ctx context.Context, id, status, note string) (models.PayoutRequest, error)
}

// Transactional is implemented by stores that can run several writes atomically.
type Transactional interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
