package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an affiliate or administrator account.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	ProfileImage   string         `json:"profile_image"`
	IsAdmin        bool           `json:"is_admin"`
	IsSuspended    bool           `json:"is_suspended"`
	PaymentMethods PaymentMethods `json:"payout_methods"`
	CreatedAt      time.Time      `json:"created_at"`
}

// FullName returns "First Last", falling back to the email.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// ProfileUpdate holds the self-service editable fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Stats is the earnings summary computed from one affiliate's leads.
type Stats struct {
	Total          int             `json:"total"`
	Approved       int             `json:"approved"`
	Pending        int             `json:"pending"`
	Rejected       int             `json:"rejected"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	PaidEarnings   decimal.Decimal `json:"paid_earnings"`
	UnpaidEarnings decimal.Decimal `json:"unpaid_earnings"`
}
