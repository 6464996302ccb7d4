package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/datasheet/internal/core"
)

// isConstraintViolation reports whether err is an integrity constraint
// failure (unique, foreign key, not null, check) on either driver.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// SQLSTATE class 23: integrity constraint violation
		// 22: data exception (bad numeric/date text)
		return strings.HasPrefix(pgErr.Code, "23") || strings.HasPrefix(pgErr.Code, "22")
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// writeError classifies a failed write. Constraint violations are rejected
// data and wrap core.ErrValidation; anything else is returned as is.
func writeError(op string, err error) error {
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, core.ErrValidation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
