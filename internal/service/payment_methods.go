package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"LeadDesk/internal/db"
	"LeadDesk/internal/models"
	"LeadDesk/internal/payments"
	"LeadDesk/internal/session"
)

func paymentError(err error) error {
	switch {
	case errors.Is(err, payments.ErrInvalidMethod):
		return invalid("payment_method", "%s", strings.TrimPrefix(err.Error(), payments.ErrInvalidMethod.Error()+": "))
	case errors.Is(err, payments.ErrMethodNotFound):
		return fmt.Errorf("%v: %w", err, db.ErrNotFound)
	}
	return err
}

// editMethods loads the caller's methods, applies edit and saves the result
// in one write.
func (s *Service) editMethods(ctx context.Context, sess session.Session, op string,
	edit func(models.PaymentMethods) (models.PaymentMethods, error)) (models.PaymentMethods, error) {
	if err := requireActive(sess); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	methods, err := edit(user.PaymentMethods)
	if err != nil {
		return nil, paymentError(err)
	}
	if err := s.store.SavePaymentMethods(ctx, sess.UserID, methods); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": sess.UserID, "op": op, "count": len(methods)}).Info("payment methods saved")
	return methods, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context, sess session.Session) (models.PaymentMethods, error) {
	user, err := s.Me(ctx, sess)
	if err != nil {
		return nil, err
	}
	if user.PaymentMethods == nil {
		return models.PaymentMethods{}, nil
	}
	return user.PaymentMethods, nil
}

func (s *Service) AddPaymentMethod(ctx context.Context, sess session.Session, m models.PaymentMethod) (models.PaymentMethod, error) {
	m.ID = ""
	m.Name = strings.TrimSpace(m.Name)
	var saved models.PaymentMethod
	_, err := s.editMethods(ctx, sess, "add payment method", func(methods models.PaymentMethods) (models.PaymentMethods, error) {
		out, added, err := payments.Upsert(methods, m, s.now())
		saved = added
		return out, err
	})
	return saved, err
}

func (s *Service) UpdatePaymentMethod(ctx context.Context, sess session.Session, id string, m models.PaymentMethod) (models.PaymentMethod, error) {
	m.ID = id
	m.Name = strings.TrimSpace(m.Name)
	var saved models.PaymentMethod
	_, err := s.editMethods(ctx, sess, "update payment method", func(methods models.PaymentMethods) (models.PaymentMethods, error) {
		out, updated, err := payments.Upsert(methods, m, s.now())
		saved = updated
		return out, err
	})
	return saved, err
}

func (s *Service) DeletePaymentMethod(ctx context.Context, sess session.Session, id string) (models.PaymentMethods, error) {
	return s.editMethods(ctx, sess, "delete payment method", func(methods models.PaymentMethods) (models.PaymentMethods, error) {
		return payments.Remove(methods, id)
	})
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, sess session.Session, id string) (models.PaymentMethods, error) {
	return s.editMethods(ctx, sess, "set default payment method", func(methods models.PaymentMethods) (models.PaymentMethods, error) {
		return payments.SetDefault(methods, id)
	})
}
