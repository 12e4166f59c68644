// Package payments manages the payment methods kept in a user record.
// Functions never mutate the slice they are given.
package payments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

var (
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrMethodNotFound  = errors.New("payment method not found")
	ErrNoPaymentMethod = errors.New("no payment method configured")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidMethod, fmt.Sprintf(format, args...))
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Validate checks the name and the fields required by the method type.
func Validate(m models.PaymentMethod) error {
	if blank(m.Name) {
		return invalid("name is required")
	}
	switch d := m.Details.(type) {
	case models.PayPalDetails:
		if blank(d.Email) {
			return invalid("PayPal email is required")
		}
	case models.WiseDetails:
		if blank(d.Name) || blank(d.Email) || blank(d.AccountID) {
			return invalid("all Wise fields are required")
		}
	case models.BankTransferDetails:
		if blank(d.AccountName) || blank(d.IBAN) || blank(d.BankName) || blank(d.SWIFT) {
			return invalid("all bank transfer fields are required")
		}
	case nil:
		return invalid("type is required")
	default:
		return invalid("unsupported type %q", m.Type())
	}
	return nil
}

// NewID returns a fresh payment method id.
func NewID() string {
	return constants.PAYMENT_METHOD_ID_PREFIX + uuid.NewString()
}

func clone(methods models.PaymentMethods) models.PaymentMethods {
	out := make(models.PaymentMethods, len(methods))
	copy(out, methods)
	return out
}

func indexOf(methods models.PaymentMethods, id string) int {
	for i := range methods {
		if methods[i].ID == id {
			return i
		}
	}
	return -1
}

// Upsert adds m (when m.ID is empty) or replaces the method with the same id.
// If m is default every other method loses the flag.
func Upsert(methods models.PaymentMethods, m models.PaymentMethod, now time.Time) (models.PaymentMethods, models.PaymentMethod, error) {
	if err := Validate(m); err != nil {
		return nil, models.PaymentMethod{}, err
	}
	out := clone(methods)
	if m.ID == "" {
		m.ID = NewID()
		m.CreatedAt = now
		out = append(out, m)
	} else {
		i := indexOf(out, m.ID)
		if i < 0 {
			return nil, models.PaymentMethod{}, ErrMethodNotFound
		}
		m.CreatedAt = out[i].CreatedAt
		out[i] = m
	}
	if m.IsDefault {
		out = withDefault(out, m.ID)
	}
	return out, m, nil
}

// Remove drops the method with the given id. When the default is removed the
// first remaining method becomes default.
func Remove(methods models.PaymentMethods, id string) (models.PaymentMethods, error) {
	i := indexOf(methods, id)
	if i < 0 {
		return nil, ErrMethodNotFound
	}
	wasDefault := methods[i].IsDefault
	out := make(models.PaymentMethods, 0, len(methods)-1)
	out = append(out, methods[:i]...)
	out = append(out, methods[i+1:]...)
	if wasDefault && len(out) > 0 {
		out = withDefault(out, out[0].ID)
	}
	return out, nil
}

// SetDefault marks exactly the method with the given id as default.
func SetDefault(methods models.PaymentMethods, id string) (models.PaymentMethods, error) {
	if indexOf(methods, id) < 0 {
		return nil, ErrMethodNotFound
	}
	return withDefault(clone(methods), id), nil
}

func withDefault(methods models.PaymentMethods, id string) models.PaymentMethods {
	for i := range methods {
		methods[i].IsDefault = methods[i].ID == id
	}
	return methods
}

// Choose picks the method for a payout: the explicit id if given, otherwise
// the default, otherwise the first configured one.
func Choose(methods models.PaymentMethods, id string) (models.PaymentMethod, error) {
	if len(methods) == 0 {
		return models.PaymentMethod{}, ErrNoPaymentMethod
	}
	if id != "" {
		i := indexOf(methods, id)
		if i < 0 {
			return models.PaymentMethod{}, ErrMethodNotFound
		}
		return methods[i], nil
	}
	for _, m := range methods {
		if m.IsDefault {
			return m, nil
		}
	}
	return methods[0], nil
}

// Snapshot copies a method into the form stored on a payout request.
// Details are value types, so later edits to the method do not leak in.
func Snapshot(m models.PaymentMethod) models.PaymentSnapshot {
	return models.PaymentSnapshot{
		MethodID: m.ID,
		Name:     m.Name,
		Details:  m.Details,
	}
}

// Describe renders a short human label such as "PayPal (a@b.co)".
func Describe(s models.PaymentSnapshot) string {
	label := constants.PaymentMethodDisplayMap[s.Type()]
	if label == "" {
		label = s.Type()
	}
	switch d := s.Details.(type) {
	case models.PayPalDetails:
		return fmt.Sprintf("%s (%s)", label, d.Email)
	case models.WiseDetails:
		return fmt.Sprintf("%s (%s, %s)", label, d.Email, d.AccountID)
	case models.BankTransferDetails:
		return fmt.Sprintf("%s (%s, %s, %s)", label, d.AccountName, d.IBAN, d.BankName)
	}
	return label
}
