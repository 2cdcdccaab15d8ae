package postgres

import (
	"database/sql"
	"errors"
	"strings"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Poolers in transaction mode can drop the unnamed prepared statement between
// parse and bind; a single immediate retry recovers.
func withPreparedRetry(fn func() error) error {
	err := fn()
	if err != nil && (isBindParameterMismatch(err) || isUnnamedPreparedStatementMissing(err)) {
		return fn()
	}
	return err
}

func isBindParameterMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bind message supplies") && strings.Contains(msg, "requires")
}

func isUnnamedPreparedStatementMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unnamed prepared statement does not exist") {
		return true
	}
	return strings.Contains(msg, "prepared statement") && strings.Contains(msg, "26000")
}
