package constants

import "time"

// Lead Statuses
const (
	LEAD_STATUS_PENDING  = "pending"
	LEAD_STATUS_APPROVED = "approved"
	LEAD_STATUS_REJECTED = "rejected"
)

// Payout Request Statuses
const (
	PAYOUT_REQUEST_STATUS_REQUESTED = "requested"
	PAYOUT_REQUEST_STATUS_APPROVED  = "approved"
	PAYOUT_REQUEST_STATUS_REJECTED  = "rejected"
)

// Payment method types
const (
	PAYMENT_METHOD_PAYPAL        = "paypal"
	PAYMENT_METHOD_WISE          = "wise"
	PAYMENT_METHOD_BANK_TRANSFER = "bank_transfer"
)

const (
	ROLE_AFFILIATE = "affiliate"
	ROLE_ADMIN     = "admin"
)

// MIN_PAYOUT_AMOUNT is the unpaid-earnings threshold for a payout request,
// in the same opaque currency units as lead prices.
const MIN_PAYOUT_AMOUNT = 100

// Store tables
const (
	TABLE_USERS           = "users"
	TABLE_LEADS           = "leads"
	TABLE_PAYOUT_REQUESTS = "payout_requests"
)

// Dashboard limits
const (
	RecentLeadsOnDashboard  = 5
	TopAffiliatesOnOverview = 10
)

// DEFAULT_STORE_TIMEOUT bounds the store calls of one service operation.
const DEFAULT_STORE_TIMEOUT = 5 * time.Second

// PAYMENT_METHOD_ID_PREFIX prefixes generated payment method ids.
const PAYMENT_METHOD_ID_PREFIX = "pm_"

// DefaultPrograms is the program catalog used when PROGRAMS_FILE is not set.
var DefaultPrograms = []string{
	"The Smart Acquisition Program",
	"The Acquisition Partnership",
	"The Automation Program",
}

var LeadStatusDisplayMap = map[string]string{
	LEAD_STATUS_PENDING:  "Pending",
	LEAD_STATUS_APPROVED: "Approved",
	LEAD_STATUS_REJECTED: "Rejected",
}

var PayoutStatusDisplayMap = map[string]string{
	PAYOUT_REQUEST_STATUS_REQUESTED: "Pending",
	PAYOUT_REQUEST_STATUS_APPROVED:  "Approved",
	PAYOUT_REQUEST_STATUS_REJECTED:  "Rejected",
}

var PaymentMethodDisplayMap = map[string]string{
	PAYMENT_METHOD_PAYPAL:        "PayPal",
	PAYMENT_METHOD_WISE:          "Wise",
	PAYMENT_METHOD_BANK_TRANSFER: "Bank Transfer",
}
