package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_key"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"pg wrapped", fmt.Errorf("insert: %w", pgErr), "", true},
		{"pg constraint match", pgErr, "users_email_key", true},
		{"pg constraint mismatch", pgErr, "orders_order_number_key", false},
		{"pg other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"sqlite", errors.New("UNIQUE constraint failed: users.email"), "users.email", true},
		{"plain", errors.New("connection reset"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
