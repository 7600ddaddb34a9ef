package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
)

func TestIsUndefinedTable(t *testing.T) {
	undefined := &pgconn.PgError{Code: "42P01", Message: `relation "chat_states" does not exist`}
	if !isUndefinedTable(undefined) {
		t.Fatalf("42P01 should be recognised")
	}
	if !isUndefinedTable(fmt.Errorf("query: %w", undefined)) {
		t.Fatalf("wrapped 42P01 should be recognised")
	}
	if isUndefinedTable(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not an undefined table")
	}
	if isUndefinedTable(errors.New("connection refused")) {
		t.Fatalf("plain errors are not undefined tables")
	}
}
