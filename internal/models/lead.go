package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amounts are JSON numbers on the wire, e.g. "price": 150.5.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Lead is a prospect submitted by an affiliate for one program.
type Lead struct {
	ID              string           `json:"id"`
	AffiliateID     string           `json:"affiliate_id"`
	FullName        string           `json:"full_name"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone"`
	Website         string           `json:"website"`
	Program         string           `json:"program"`
	LeadNote        string           `json:"lead_note"`
	Status          string           `json:"status"`
	Price           *decimal.Decimal `json:"price"` // nil until approved
	Paid            bool             `json:"paid"`
	CallRequested   bool             `json:"call_requested"`
	CallMeetingLink string           `json:"call_meeting_link"`
	AdminNote       string           `json:"admin_note"`
	PayoutRequestID NullString       `json:"payout_request_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PriceOrZero treats a missing price as zero.
func (l Lead) PriceOrZero() decimal.Decimal {
	if l.Price == nil {
		return decimal.Zero
	}
	return *l.Price
}

// LeadReview carries the admin-editable fields of a lead. Nil means unchanged.
type LeadReview struct {
	Status          *string          `json:"status,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	AdminNote       *string          `json:"admin_note,omitempty"`
	CallMeetingLink *string          `json:"call_meeting_link,omitempty"`
	CallRequested   *bool            `json:"call_requested,omitempty"`

	// ClearPrice removes a stored price (lead moved away from approved).
	ClearPrice bool `json:"-"`
}

// LeadFilter narrows lead listings. Zero values mean "any".
type LeadFilter struct {
	AffiliateID   string
	Status        string
	Program       string
	CallRequested *bool
	Search        string
	// Ascending orders by created_at oldest first; default is newest first.
	Ascending bool
	Limit     int
}
