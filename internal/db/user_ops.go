package db

import (
	"context"
	"fmt"
	"strings"

	"LeadDesk/internal/models"
)

const userColumns = `id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(profile_image, ''),
        is_admin, is_suspended, payout_methods, created_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImage,
		&u.IsAdmin, &u.IsSuspended, &u.PaymentMethods, &u.CreatedAt)
	return u, err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, mapError("get user", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		users = append(users, u)
	}
	return users, mapError("list users", rows.Err())
}

func (s *PostgresStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	created, err := scanUser(s.q.QueryRowContext(ctx, `
        INSERT INTO users (id, email, first_name, last_name, profile_image, is_admin, is_suspended, payout_methods, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+userColumns,
		u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImage, u.IsAdmin, u.IsSuspended, u.PaymentMethods, u.CreatedAt,
	))
	if err != nil {
		return models.User{}, mapError("create user", err)
	}
	s.log.WithField("user_id", created.ID).Info("user created")
	return created, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	var sets []string
	var args []interface{}
	add := func(col string, v *string) {
		if v != nil {
			args = append(args, *v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("first_name", upd.FirstName)
	add("last_name", upd.LastName)
	add("profile_image", upd.ProfileImage)
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return models.User{}, mapError("update profile", err)
	}
	return u, nil
}

func (s *PostgresStore) SetSuspended(ctx context.Context, id string, suspended bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET is_suspended = $1 WHERE id = $2`, suspended, id)
	if err != nil {
		return mapError("set suspended", err)
	}
	return expectOneRow("set suspended", res)
}

func (s *PostgresStore) SavePaymentMethods(ctx context.Context, userID string, methods models.PaymentMethods) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET payout_methods = $1, default_payout_method = NULLIF($2, '') WHERE id = $3`,
		methods, methods.DefaultType(), userID)
	if err != nil {
		return mapError("save payment methods", err)
	}
	return expectOneRow("save payment methods", res)
}

// DeleteUser removes the user; leads and payout requests go with it (ON DELETE CASCADE).
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError("delete user", err)
	}
	if err := expectOneRow("delete user", res); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
