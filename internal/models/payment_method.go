package models

import (
	"encoding/json"
	"fmt"
	"time"

	"LeadDesk/internal/constants"
)

// PaymentDetails is the provider-specific part of a payment method.
// Implementations: PayPalDetails, WiseDetails, BankTransferDetails.
type PaymentDetails interface {
	Type() string
}

type PayPalDetails struct {
	Email string `json:"email"`
}

func (PayPalDetails) Type() string { return constants.PAYMENT_METHOD_PAYPAL }

type WiseDetails struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
}

func (WiseDetails) Type() string { return constants.PAYMENT_METHOD_WISE }

type BankTransferDetails struct {
	AccountName string `json:"name"`
	IBAN        string `json:"iban"`
	BankName    string `json:"bank_name"`
	SWIFT       string `json:"swift"`
}

func (BankTransferDetails) Type() string { return constants.PAYMENT_METHOD_BANK_TRANSFER }

// PaymentMethod is a named payout destination stored inside the user record.
type PaymentMethod struct {
	ID        string
	Name      string
	IsDefault bool
	CreatedAt time.Time
	Details   PaymentDetails
}

// Type returns the method discriminator, or "" when details are missing.
func (m PaymentMethod) Type() string {
	if m.Details == nil {
		return ""
	}
	return m.Details.Type()
}

type paymentMethodJSON struct {
	ID        string                     `json:"id"`
	Type      string                     `json:"type"`
	Name      string                     `json:"name"`
	IsDefault bool                       `json:"is_default"`
	Details   map[string]json.RawMessage `json:"details"`
	CreatedAt time.Time                  `json:"created_at"`
}

func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	details, err := encodeDetails(m.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paymentMethodJSON{
		ID:        m.ID,
		Type:      m.Type(),
		Name:      m.Name,
		IsDefault: m.IsDefault,
		Details:   details,
		CreatedAt: m.CreatedAt,
	})
}

func (m *PaymentMethod) UnmarshalJSON(b []byte) error {
	var raw paymentMethodJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	details, err := decodeDetails(raw.Type, raw.Details)
	if err != nil {
		return err
	}
	*m = PaymentMethod{
		ID:        raw.ID,
		Name:      raw.Name,
		IsDefault: raw.IsDefault,
		CreatedAt: raw.CreatedAt,
		Details:   details,
	}
	return nil
}

// PaymentMethods is the list kept in the user's payout_methods column.
type PaymentMethods []PaymentMethod

// DefaultType is the type of the default method, or "" when none is default.
// It is mirrored into users.default_payout_method.
func (pm PaymentMethods) DefaultType() string {
	for _, m := range pm {
		if m.IsDefault {
			return m.Type()
		}
	}
	return ""
}

// PaymentSnapshot is the copy of a payment method stored on a payout request.
type PaymentSnapshot struct {
	MethodID string
	Name     string
	Details  PaymentDetails
}

func (s PaymentSnapshot) Type() string {
	if s.Details == nil {
		return ""
	}
	return s.Details.Type()
}

// JSON form: {"method_id":..,"name":..,"type":..,"<type>":{...}}
func (s PaymentSnapshot) MarshalJSON() ([]byte, error) {
	out, err := encodeDetails(s.Details)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	for k, v := range map[string]string{"method_id": s.MethodID, "name": s.Name, "type": s.Type()} {
		if v == "" {
			continue
		}
		enc, _ := json.Marshal(v)
		out[k] = enc
	}
	return json.Marshal(out)
}

func (s *PaymentSnapshot) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = PaymentSnapshot{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var snap PaymentSnapshot
	var typ string
	for k, dst := range map[string]*string{"method_id": &snap.MethodID, "name": &snap.Name, "type": &typ} {
		if v, ok := raw[k]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("payment snapshot %s: %w", k, err)
			}
		}
	}
	if typ != "" {
		details, err := decodeDetails(typ, raw)
		if err != nil {
			return err
		}
		snap.Details = details
	}
	*s = snap
	return nil
}

func encodeDetails(d PaymentDetails) (map[string]json.RawMessage, error) {
	if d == nil {
		return nil, nil
	}
	enc, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return map[string]json.RawMessage{d.Type(): enc}, nil
}

func decodeDetails(typ string, details map[string]json.RawMessage) (PaymentDetails, error) {
	raw, ok := details[typ]
	if !ok || len(raw) == 0 {
		raw = []byte("{}")
	}
	switch typ {
	case constants.PAYMENT_METHOD_PAYPAL:
		var d PayPalDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("paypal details: %w", err)
		}
		return d, nil
	case constants.PAYMENT_METHOD_WISE:
		var d WiseDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("wise details: %w", err)
		}
		return d, nil
	case constants.PAYMENT_METHOD_BANK_TRANSFER:
		var d BankTransferDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("bank transfer details: %w", err)
		}
		return d, nil
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown payment method type %q", typ)
}
