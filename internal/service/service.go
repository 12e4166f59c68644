// Package service implements the lead portal's use cases on top of a record
// store: lead submission and review, payment methods, payouts and dashboards.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/session"
	"LeadDesk/internal/utils"
)

var (
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means the record is not in a state that allows the change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError is returned for bad input; nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PartialApprovalError means the payout request is already approved but
// marking its leads paid failed. The leads must be reconciled by hand.
type PartialApprovalError struct {
	PayoutID string
	Err      error
}

func (e *PartialApprovalError) Error() string {
	return fmt.Sprintf("payout %s marked approved but lead reconciliation failed: %v", e.PayoutID, e.Err)
}

func (e *PartialApprovalError) Unwrap() error { return e.Err }

// Notifier delivers a short text to the administrators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) error { return nil }

type Options struct {
	Store    db.Store
	Notifier Notifier
	Logger   logrus.FieldLogger
	Programs []string
	// Timeout bounds each operation's store calls. Zero means DEFAULT_STORE_TIMEOUT.
	Timeout time.Duration
}

type Service struct {
	store    db.Store
	notifier Notifier
	log      logrus.FieldLogger
	programs []string
	timeout  time.Duration

	now   func() time.Time
	newID func() string
}

func New(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      opts.Logger,
		programs: opts.Programs,
		timeout:  opts.Timeout,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    utils.GenerateUUID,
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if len(s.programs) == 0 {
		s.programs = constants.DefaultPrograms
	}
	if s.timeout <= 0 {
		s.timeout = constants.DEFAULT_STORE_TIMEOUT
	}
	return s
}

// Programs returns the program catalog.
func (s *Service) Programs() []string {
	out := make([]string, len(s.programs))
	copy(out, s.programs)
	return out
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func requireAdmin(sess session.Session) error {
	if !sess.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func requireActive(sess session.Session) error {
	if sess.IsSuspended && !sess.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// notify never fails the caller; delivery problems are only logged.
func (s *Service) notify(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.WithError(err).Warn("admin notification failed")
	}
}

// emptyIfMissing turns a missing table into an empty read result.
func emptyIfMissing[T any](rows []T, err error) ([]T, error) {
	if err != nil && db.IsRelationMissing(err) {
		return []T{}, nil
	}
	if rows == nil && err == nil {
		rows = []T{}
	}
	return rows, err
}
