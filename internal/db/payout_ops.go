package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

const payoutColumns = `id, affiliate_id, amount, method, details, status, COALESCE(note, ''), processed_at, created_at`

func scanPayout(row scanner) (models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := row.Scan(&p.ID, &p.AffiliateID, &p.Amount, &p.Method, &p.Details, &p.Status, &p.Note, &p.ProcessedAt, &p.CreatedAt)
	return p, err
}

func (s *PostgresStore) InsertPayoutRequest(ctx context.Context, p models.PayoutRequest) (models.PayoutRequest, error) {
	created, err := scanPayout(s.q.QueryRowContext(ctx, `
        INSERT INTO payout_requests (id, affiliate_id, amount, method, details, status, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+payoutColumns,
		p.ID, p.AffiliateID, p.Amount, p.Method, p.Details, p.Status, p.Note, p.CreatedAt,
	))
	if err != nil {
		return models.PayoutRequest{}, mapError("insert payout request", err)
	}
	s.log.WithFields(map[string]interface{}{
		"payout_id":    created.ID,
		"affiliate_id": created.AffiliateID,
		"amount":       created.Amount.String(),
	}).Info("payout request created")
	return created, nil
}

func (s *PostgresStore) GetPayoutRequest(ctx context.Context, id string) (models.PayoutRequest, error) {
	p, err := scanPayout(s.q.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
	if err != nil {
		return models.PayoutRequest{}, mapError("get payout request", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPayoutRequests(ctx context.Context, f models.PayoutFilter) ([]models.PayoutRequest, error) {
	var where []string
	var args []interface{}
	if f.AffiliateID != "" {
		args = append(args, f.AffiliateID)
		where = append(where, fmt.Sprintf("affiliate_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + payoutColumns + ` FROM payout_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list payout requests", err)
	}
	defer rows.Close()

	var payouts []models.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, mapError("scan payout request", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, mapError("list payout requests", rows.Err())
}

func (s *PostgresStore) TransitionPayoutRequest(ctx context.Context, id, status, note string) (models.PayoutRequest, error) {
	p, err := scanPayout(s.q.QueryRowContext(ctx, `
        UPDATE payout_requests SET status = $1, note = $2, processed_at = NOW()
        WHERE id = $3 AND status = $4
        RETURNING `+payoutColumns,
		status, note, id, constants.PAYOUT_REQUEST_STATUS_REQUESTED,
	))
	if err == nil {
		s.log.WithFields(map[string]interface{}{"payout_id": id, "status": status}).Info("payout request processed")
		return p, nil
	}
	err = mapError("transition payout request", err)
	if !errors.Is(err, ErrNotFound) {
		return models.PayoutRequest{}, err
	}
	// No row matched: either the id is unknown or the request was already processed.
	if _, getErr := s.GetPayoutRequest(ctx, id); getErr != nil {
		return models.PayoutRequest{}, getErr
	}
	return models.PayoutRequest{}, fmt.Errorf("transition payout request %s: %w", id, ErrConflict)
}
