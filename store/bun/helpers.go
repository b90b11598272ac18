package bunstore

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
// The dedupe index on (issue_id, subscriber_id) surfaces through it.
const pgUniqueViolation = "23505"

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}
