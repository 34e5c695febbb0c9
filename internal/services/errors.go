package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound    = errors.New("account: not found")
	ErrEmailTaken         = errors.New("account: email already registered")
	ErrInvitationUnusable = errors.New("invitation: not usable")
)

// Vendor codes for a duplicate key.
const (
	pgUniqueViolation  = "23505"
	mysqlDuplicateKey  = 1062
	sqliteUniqueMarker = "unique constraint failed"
)

// duplicateKeyMatchers recognise a unique index rejection from each
// supported driver. SQLite only exposes the failure in its message text.
var duplicateKeyMatchers = []func(error) bool{
	func(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) },
	func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
	func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKey
	},
	func(err error) bool {
		return strings.Contains(strings.ToLower(err.Error()), sqliteUniqueMarker)
	},
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	for _, match := range duplicateKeyMatchers {
		if match(err) {
			return true
		}
	}
	return false
}
