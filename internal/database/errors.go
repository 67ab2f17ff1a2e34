// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"database/sql"
	"strings"

	"github.com/juju/errors"
	"github.com/mattn/go-sqlite3"
)

// IsErrConstraintUnique returns true if the input error was generated by
// the store due to a unique or primary key constraint violation.
func IsErrConstraintUnique(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsErrConstraintCheck returns true if the input error was generated by
// the store due to a check constraint violation.
func IsErrConstraintCheck(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}

// IsErrConstraintForeignKey returns true if the input error was
// generated by the store due to a foreign key constraint violation.
func IsErrConstraintForeignKey(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// IsErrNotFound returns true if the input error indicates that no rows
// matched a query that expected at least one.
func IsErrNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsErrRetryable returns true if the input error is transient and the
// transaction that produced it can be expected to succeed on retry.
func IsErrRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return true
		}
	}

	// Unwrapped driver errors surfaced through sqlair lose their type, so
	// fall back to matching the well known message forms.
	msg := err.Error()
	for _, s := range []string{
		"database is locked",
		"cannot start a transaction within a transaction",
		"bad connection",
		"checkpoint in progress",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsErrLocked returns true if the input error indicates that a row or
// database lock could not be obtained.
func IsErrLocked(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}
