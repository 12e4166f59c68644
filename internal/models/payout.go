package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutRequest is an affiliate's request to be paid out unpaid earnings.
// Details is a copy of the payment method taken at request time.
type PayoutRequest struct {
	ID          string          `json:"id"`
	AffiliateID string          `json:"affiliate_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Details     PaymentSnapshot `json:"details"`
	Status      string          `json:"status"`
	Note        string          `json:"note"`
	ProcessedAt NullTime        `json:"processed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PayoutFilter narrows payout listings. Zero values mean "any".
type PayoutFilter struct {
	AffiliateID string
	Status      string
}

// PayoutWithUser is a payout request joined with its owner for admin views.
type PayoutWithUser struct {
	PayoutRequest
	User *User `json:"user,omitempty"`
}

// Allocation is the outcome of matching a payout amount against unpaid leads.
type Allocation struct {
	PaidLeadIDs []string        `json:"paid_lead_ids"`
	Remaining   decimal.Decimal `json:"remaining_unallocated"`
}
