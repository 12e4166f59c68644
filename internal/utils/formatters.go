package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

// EscapeTelegramMarkdown escapes the characters special to legacy Telegram Markdown.
func EscapeTelegramMarkdown(text string) string {
	var replacer = strings.NewReplacer(
		"_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[",
	)
	return replacer.Replace(text)
}

// FormatMoney renders an amount with two decimals and thousands separators, e.g. "1,234.50".
func FormatMoney(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// GetStatusDisplayName maps lead and payout statuses to labels.
func GetStatusDisplayName(status string) string {
	if label, ok := constants.LeadStatusDisplayMap[status]; ok {
		return label
	}
	if label, ok := constants.PayoutStatusDisplayMap[status]; ok {
		return label
	}
	return status
}

func GenerateUUID() string {
	return uuid.NewString()
}

// GetUserDisplayName returns "Name <email>" or just the email.
func GetUserDisplayName(user models.User) string {
	name := user.FullName()
	if name == user.Email || user.Email == "" {
		return name
	}
	return name + " <" + user.Email + ">"
}
