// Package repository contains the database/sql data access layer.  All SQL
// is written to run unchanged on MySQL (production) and SQLite (tests):
// positional '?' placeholders, timestamps passed as parameters instead of
// NOW(), and booleans compared against 0/1.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Sentinel errors returned by repositories.  Handlers and services translate
// them into the application error taxonomy.
var (
	ErrEmailExists         = errors.New("email already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrVideoNotFound       = errors.New("video not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateOrder      = errors.New("duplicate gateway order id")
	ErrTokenNotFound       = errors.New("access token not found")
	ErrDuplicateToken      = errors.New("duplicate access token")
	ErrOutboxNotFound      = errors.New("outbox message not found")
)

// queryer is satisfied by both *sql.DB and *sql.Tx so that one statement
// implementation serves the plain and the transactional variants.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// isDuplicateKey reports whether err is a unique constraint violation
// (MySQL 1062 or SQLite "UNIQUE constraint failed").
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nowUTC truncates to microseconds, the precision of DATETIME(6).
func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
