package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"LeadDesk/internal/constants"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var phoneCleanup = regexp.MustCompile(`[\s().\-]`)
var phoneRegex = regexp.MustCompile(`^\+?\d{7,15}$`)

// ValidateEmail checks the address shape only; deliverability is not checked.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePhoneNumber strips separators and accepts 7 to 15 digits with an
// optional leading "+". An empty value is allowed.
func ValidatePhoneNumber(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	cleaned := phoneCleanup.ReplaceAllString(phone, "")
	if !phoneRegex.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number")
	}
	return cleaned, nil
}

// NormalizeWebsite prepends https:// when the value has no http(s) scheme.
func NormalizeWebsite(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(site), "http") {
		return site
	}
	return "https://" + site
}

// IsHTTPURL reports whether s is an absolute http or https URL.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// ValidateMeetingLink requires an absolute http(s) URL.
func ValidateMeetingLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("meeting link is required")
	}
	if !IsHTTPURL(link) {
		return "", fmt.Errorf("meeting link must be an http(s) URL")
	}
	return link, nil
}

var roleHierarchy = map[string]int{
	constants.ROLE_AFFILIATE: 1,
	constants.ROLE_ADMIN:     2,
}

// IsRoleOrHigher reports whether userRole grants at least requiredRole.
func IsRoleOrHigher(userRole string, requiredRole string) bool {
	userLevel, ok := roleHierarchy[userRole]
	if !ok {
		return false
	}
	requiredLevel, ok := roleHierarchy[requiredRole]
	if !ok {
		return false
	}
	return userLevel >= requiredLevel
}

// IsKnownProgram reports whether program is in the catalog.
func IsKnownProgram(program string, catalog []string) bool {
	for _, p := range catalog {
		if p == program {
			return true
		}
	}
	return false
}
