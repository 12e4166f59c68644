// Package formatters renders the Telegram messages sent to administrators.
package formatters

import (
	"fmt"
	"strings"

	"LeadDesk/internal/models"
	"LeadDesk/internal/payments"
	"LeadDesk/internal/utils"
)

const (
	separator = "─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─"
)

func esc(s string) string { return utils.EscapeTelegramMarkdown(s) }

// FormatLeadSubmitted announces a new lead for review.
func FormatLeadSubmitted(affiliate models.User, lead models.Lead) string {
	var b strings.Builder
	b.WriteString("🆕 *NEW LEAD*\n")
	b.WriteString(fmt.Sprintf(" •  Affiliate: %s\n", esc(utils.GetUserDisplayName(affiliate))))
	b.WriteString(separator + "\n")
	b.WriteString(fmt.Sprintf(" •  Name: %s\n", esc(lead.FullName)))
	b.WriteString(fmt.Sprintf(" •  Email: %s\n", esc(lead.Email)))
	if lead.Phone != "" {
		b.WriteString(fmt.Sprintf(" •  Phone: %s\n", esc(lead.Phone)))
	}
	if lead.Website != "" {
		b.WriteString(fmt.Sprintf(" •  Website: %s\n", esc(lead.Website)))
	}
	b.WriteString(fmt.Sprintf(" •  Program: %s\n", esc(lead.Program)))
	if lead.LeadNote != "" {
		b.WriteString(fmt.Sprintf(" •  Note: %s\n", esc(lead.LeadNote)))
	}
	return b.String()
}

// FormatPayoutRequested announces a payout request waiting for a decision.
func FormatPayoutRequested(affiliate models.User, p models.PayoutRequest) string {
	var b strings.Builder
	b.WriteString("💸 *PAYOUT REQUESTED*\n")
	b.WriteString(fmt.Sprintf(" •  Affiliate: %s\n", esc(utils.GetUserDisplayName(affiliate))))
	b.WriteString(fmt.Sprintf(" •  Amount: %s\n", utils.FormatMoney(p.Amount)))
	b.WriteString(fmt.Sprintf(" •  Method: %s\n", esc(payments.Describe(p.Details))))
	b.WriteString(fmt.Sprintf(" •  Request: `%s`\n", p.ID))
	return b.String()
}

// FormatPayoutDecision summarises an approval or rejection. alloc is nil for rejections.
func FormatPayoutDecision(p models.PayoutRequest, alloc *models.Allocation) string {
	icon := "✅"
	if alloc == nil {
		icon = "❌"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s *PAYOUT %s*\n", icon, strings.ToUpper(utils.GetStatusDisplayName(p.Status))))
	b.WriteString(fmt.Sprintf(" •  Request: `%s`\n", p.ID))
	b.WriteString(fmt.Sprintf(" •  Amount: %s\n", utils.FormatMoney(p.Amount)))
	if p.Note != "" {
		b.WriteString(fmt.Sprintf(" •  Note: %s\n", esc(p.Note)))
	}
	if alloc != nil {
		b.WriteString(separator + "\n")
		b.WriteString(fmt.Sprintf(" •  Leads marked paid: %d\n", len(alloc.PaidLeadIDs)))
		if alloc.Remaining.IsPositive() {
			b.WriteString(fmt.Sprintf(" •  Unallocated: %s\n", utils.FormatMoney(alloc.Remaining)))
		}
	}
	return b.String()
}

// FormatPartialApproval warns that lead reconciliation needs manual follow-up.
func FormatPartialApproval(p models.PayoutRequest, err error) string {
	return fmt.Sprintf("⚠️ *PAYOUT NEEDS RECONCILIATION*\nRequest `%s` is approved but its leads were not marked paid: %s",
		p.ID, esc(err.Error()))
}
