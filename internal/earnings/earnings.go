// Package earnings computes affiliate earnings from leads and matches payout
// amounts against unpaid approved leads. Everything here is pure.
package earnings

import (
	"github.com/shopspring/decimal"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

// MinPayoutAmount is the smallest unpaid balance that can be requested.
var MinPayoutAmount = decimal.NewFromInt(constants.MIN_PAYOUT_AMOUNT)

// Aggregate counts leads by status and sums approved lead prices.
// Leads of any other status never contribute to earnings.
func Aggregate(leads []models.Lead) models.Stats {
	stats := models.Stats{
		TotalEarnings:  decimal.Zero,
		PaidEarnings:   decimal.Zero,
		UnpaidEarnings: decimal.Zero,
	}
	for _, l := range leads {
		stats.Total++
		switch l.Status {
		case constants.LEAD_STATUS_APPROVED:
			stats.Approved++
			price := l.PriceOrZero()
			stats.TotalEarnings = stats.TotalEarnings.Add(price)
			if l.Paid {
				stats.PaidEarnings = stats.PaidEarnings.Add(price)
			}
		case constants.LEAD_STATUS_PENDING:
			stats.Pending++
		case constants.LEAD_STATUS_REJECTED:
			stats.Rejected++
		}
	}
	stats.UnpaidEarnings = stats.TotalEarnings.Sub(stats.PaidEarnings)
	return stats
}

// CanRequestPayout reports whether a payout request may be created.
func CanRequestPayout(unpaid decimal.Decimal, hasPaymentMethod bool) bool {
	return hasPaymentMethod && unpaid.GreaterThanOrEqual(MinPayoutAmount)
}

// Allocate walks leads in the given order and selects each one whose price
// fits in what is left of amount. The walk stops at the first lead that does
// not fit; later, smaller leads are not considered. Whatever is left over is
// returned as Remaining and is not attributed to any lead.
func Allocate(leads []models.Lead, amount decimal.Decimal) models.Allocation {
	alloc := models.Allocation{
		PaidLeadIDs: []string{},
		Remaining:   amount,
	}
	for _, l := range leads {
		price := l.PriceOrZero()
		if price.GreaterThan(alloc.Remaining) {
			break
		}
		alloc.PaidLeadIDs = append(alloc.PaidLeadIDs, l.ID)
		alloc.Remaining = alloc.Remaining.Sub(price)
	}
	return alloc
}
