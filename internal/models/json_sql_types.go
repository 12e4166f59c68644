package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NullString wraps sql.NullString so that it encodes to JSON as a string or null.
type NullString struct {
	sql.NullString
}

func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

func (ns NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

func (ns *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != nil {
		ns.String = *s
		ns.Valid = true
	} else {
		ns.String = ""
		ns.Valid = false
	}
	return nil
}

// NullTime wraps sql.NullTime so that it encodes to JSON as a timestamp or null.
type NullTime struct {
	sql.NullTime
}

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time)
}

func (nt *NullTime) UnmarshalJSON(b []byte) error {
	var t *time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	if t != nil {
		nt.Time = *t
		nt.Valid = true
	} else {
		nt.Time = time.Time{}
		nt.Valid = false
	}
	return nil
}

// Value stores the list in a jsonb column.
func (pm PaymentMethods) Value() (driver.Value, error) {
	if pm == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(pm)
}

func (pm *PaymentMethods) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan payout_methods: %w", err)
	}
	if len(b) == 0 {
		*pm = nil
		return nil
	}
	return json.Unmarshal(b, pm)
}

func (s PaymentSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *PaymentSnapshot) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan payout details: %w", err)
	}
	if len(b) == 0 {
		*s = PaymentSnapshot{}
		return nil
	}
	return json.Unmarshal(b, s)
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported type %T", src)
}
