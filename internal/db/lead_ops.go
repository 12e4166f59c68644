package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

const leadColumns = `id, affiliate_id, full_name, email, COALESCE(phone, ''), COALESCE(website, ''), program,
        COALESCE(lead_note, ''), status, price, paid, call_requested, COALESCE(call_meeting_link, ''),
        COALESCE(admin_note, ''), payout_request_id, created_at`

func scanLead(row scanner) (models.Lead, error) {
	var l models.Lead
	var price decimal.NullDecimal
	err := row.Scan(&l.ID, &l.AffiliateID, &l.FullName, &l.Email, &l.Phone, &l.Website, &l.Program,
		&l.LeadNote, &l.Status, &price, &l.Paid, &l.CallRequested, &l.CallMeetingLink,
		&l.AdminNote, &l.PayoutRequestID, &l.CreatedAt)
	if err != nil {
		return l, err
	}
	if price.Valid {
		p := price.Decimal
		l.Price = &p
	}
	return l, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (s *PostgresStore) InsertLead(ctx context.Context, l models.Lead) (models.Lead, error) {
	created, err := scanLead(s.q.QueryRowContext(ctx, `
        INSERT INTO leads (id, affiliate_id, full_name, email, phone, website, program, lead_note,
                           status, price, paid, call_requested, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING `+leadColumns,
		l.ID, l.AffiliateID, l.FullName, l.Email, l.Phone, l.Website, l.Program, l.LeadNote,
		l.Status, nullDecimal(l.Price), l.Paid, l.CallRequested, l.CreatedAt,
	))
	if err != nil {
		return models.Lead{}, mapError("insert lead", err)
	}
	return created, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (models.Lead, error) {
	l, err := scanLead(s.q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return models.Lead{}, mapError("get lead", err)
	}
	return l, nil
}

func (s *PostgresStore) queryLeads(ctx context.Context, op, query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		leads = append(leads, l)
	}
	return leads, mapError(op, rows.Err())
}

func (s *PostgresStore) ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, error) {
	var where []string
	var args []interface{}
	cond := func(format string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(format, len(args)))
	}
	if f.AffiliateID != "" {
		cond("affiliate_id = $%d", f.AffiliateID)
	}
	if f.Status != "" {
		cond("status = $%d", f.Status)
	}
	if f.Program != "" {
		cond("program = $%d", f.Program)
	}
	if f.CallRequested != nil {
		cond("call_requested = $%d", *f.CallRequested)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Ascending {
		query += ` ORDER BY created_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.queryLeads(ctx, "list leads", query, args...)
}

func (s *PostgresStore) UpdateLeadReview(ctx context.Context, id string, r models.LeadReview) (models.Lead, error) {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if r.Status != nil {
		set("status", *r.Status)
	}
	if r.ClearPrice {
		sets = append(sets, "price = NULL")
	} else if r.Price != nil {
		set("price", *r.Price)
	}
	if r.AdminNote != nil {
		set("admin_note", *r.AdminNote)
	}
	if r.CallMeetingLink != nil {
		set("call_meeting_link", *r.CallMeetingLink)
	}
	if r.CallRequested != nil {
		set("call_requested", *r.CallRequested)
	}
	if len(sets) == 0 {
		return s.GetLead(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), leadColumns)
	l, err := scanLead(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return models.Lead{}, mapError("update lead", err)
	}
	return l, nil
}

// ListUnpaidApprovedLeads locks the returned rows when called inside a transaction.
func (s *PostgresStore) ListUnpaidApprovedLeads(ctx context.Context, affiliateID string) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
        WHERE affiliate_id = $1 AND status = $2 AND paid = FALSE
        ORDER BY created_at ASC, id ASC`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	return s.queryLeads(ctx, "list unpaid leads", query, affiliateID, constants.LEAD_STATUS_APPROVED)
}

func (s *PostgresStore) MarkLeadsPaid(ctx context.Context, leadIDs []string, payoutID string) error {
	if len(leadIDs) == 0 {
		return nil
	}
	res, err := s.q.ExecContext(ctx, `
        UPDATE leads SET paid = TRUE, payout_request_id = $1
        WHERE id = ANY($2) AND status = $3 AND paid = FALSE`,
		payoutID, pq.Array(leadIDs), constants.LEAD_STATUS_APPROVED)
	if err != nil {
		return mapError("mark leads paid", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("mark leads paid", err)
	}
	if n != int64(len(leadIDs)) {
		s.log.WithFields(map[string]interface{}{
			"payout_id": payoutID,
			"expected":  len(leadIDs),
			"updated":   n,
		}).Warn("mark leads paid: row count mismatch")
		return fmt.Errorf("mark leads paid: %w", ErrConflict)
	}
	return nil
}
