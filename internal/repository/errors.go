// Package repository implements the booking store on MySQL.  Domain
// failures are reported with the sentinel values from internal/model so
// that handlers can map them without knowing which store is in use: a
// missing row becomes model.ErrNotFound, a unique-key violation on
// bookings becomes a *model.ConflictError.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique-key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound converts sql.ErrNoRows into model.ErrNotFound for what.  Other
// errors are wrapped unchanged.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
