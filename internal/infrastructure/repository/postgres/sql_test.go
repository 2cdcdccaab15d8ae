package postgres

import (
	"database/sql"
	"fmt"
	"testing"
)

func TestIsBindParameterMismatch(t *testing.T) {
	t.Run("matches bind mismatch error", func(t *testing.T) {
		err := fakeErr("pq: bind message supplies 2 parameters, but prepared statement \"\" requires 1 (08P01)")
		if !isBindParameterMismatch(err) {
			t.Fatalf("expected true for bind mismatch error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation match_threads does not exist")
		if isBindParameterMismatch(err) {
			t.Fatalf("expected false for unrelated error")
		}
	})
}

func TestIsUnnamedPreparedStatementMissing(t *testing.T) {
	t.Run("matches statement missing message", func(t *testing.T) {
		err := fakeErr("pq: unnamed prepared statement does not exist (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for statement missing error")
		}
	})

	t.Run("matches by 26000 code", func(t *testing.T) {
		err := fakeErr("pq: prepared statement missing (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for 26000 prepared statement error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation match_threads does not exist")
		if isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected false for unrelated error")
		}
	})
}

func TestWithPreparedRetry(t *testing.T) {
	calls := 0
	err := withPreparedRetry(func() error {
		calls++
		if calls == 1 {
			return fakeErr("pq: unnamed prepared statement does not exist (26000)")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected one retry to succeed, calls=%d err=%v", calls, err)
	}

	calls = 0
	err = withPreparedRetry(func() error {
		calls++
		return sql.ErrNoRows
	})
	if !isNotFound(err) || calls != 1 {
		t.Fatalf("expected no retry for not found, calls=%d err=%v", calls, err)
	}
}

func TestIsNotFound_Wrapped(t *testing.T) {
	if !isNotFound(fmt.Errorf("get thread: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not found")
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
