package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifierDefaults(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindOther},
		{"invalid password", &pgconn.PgError{Code: "28P01"}, KindAuth},
		{"invalid authorization", &pgconn.PgError{Code: "28000"}, KindAuth},
		{"too many connections", &pgconn.PgError{Code: "53300"}, KindTransient},
		{"connection failure", &pgconn.PgError{Code: "08006"}, KindTransient},
		{"server starting up", &pgconn.PgError{Code: "57P03"}, KindTransient},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, KindOther},
		{"unique violation", &pgconn.PgError{Code: "23505"}, KindOther},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindTransient},
		{"deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"plain error", errors.New("boom"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifierUnwrapsErrors(t *testing.T) {
	c := NewClassifier(nil)

	wrapped := fmt.Errorf("ping warehouse: %w", &pgconn.PgError{Code: "28P01"})
	if got := c.Kind(wrapped); got != KindAuth {
		t.Errorf("Expected wrapped auth error to classify as auth, got %s", got)
	}

	deep := fmt.Errorf("begin quote upsert: %w", fmt.Errorf("conn: %w", &pgconn.PgError{Code: "53300"}))
	if got := c.Kind(deep); got != KindTransient {
		t.Errorf("Expected deeply wrapped transient error to classify as transient, got %s", got)
	}
}

func TestClassifierConfiguredTransientList(t *testing.T) {
	// A configured list replaces the default set entirely.
	c := NewClassifier([]string{"57014"})

	if got := c.Kind(&pgconn.PgError{Code: "57014"}); got != KindTransient {
		t.Errorf("Expected configured code to be transient, got %s", got)
	}
	if got := c.Kind(&pgconn.PgError{Code: "53300"}); got != KindOther {
		t.Errorf("Expected unlisted code to be other, got %s", got)
	}
}

func TestClassifierAuthBeatsConfiguredTransient(t *testing.T) {
	c := NewClassifier([]string{"28P01"})

	if got := c.Kind(&pgconn.PgError{Code: "28P01"}); got != KindAuth {
		t.Errorf("Expected auth classification to win, got %s", got)
	}
}
