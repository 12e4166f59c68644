package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	pgUndefinedTable  = "42P01"
	pgUniqueViolation = "23505"
)

// IsRelationMissing reports whether err means "table not created yet".
func IsRelationMissing(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRelationMissing) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUndefinedTable {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}

// mapError translates driver errors into the package sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if IsRelationMissing(err) {
		return fmt.Errorf("%s: %w", op, ErrRelationMissing)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
