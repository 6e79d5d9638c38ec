package warehouse

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind buckets a persistence failure for the orchestrator's policy:
// retry transient errors, trip the breaker on auth errors, fail the run on
// everything else.
type ErrorKind int

const (
	// KindOther is any failure that is neither retryable nor breaker-worthy.
	KindOther ErrorKind = iota

	// KindTransient is a failure worth retrying (connection hiccups,
	// exhausted server slots, timeouts).
	KindTransient

	// KindAuth is a credential/lockout failure. Retrying these can lock
	// the warehouse account, so the breaker opens instead.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	default:
		return "other"
	}
}

// defaultTransientStates are SQLSTATE codes retried when no allow-list is
// configured: connection exceptions (class 08), too many connections, and
// server-still-starting.
var defaultTransientStates = []string{
	"08000", "08001", "08003", "08004", "08006", "08007",
	"53300", "57P03",
}

// Classifier maps errors to ErrorKind by SQLSTATE. The transient set is
// injected from configuration because it is warehouse-specific and changes
// out of step with this code.
type Classifier struct {
	transient map[string]struct{}
}

// NewClassifier builds a classifier from the configured transient SQLSTATE
// list, falling back to the default set when the list is empty.
func NewClassifier(transientStates []string) *Classifier {
	if len(transientStates) == 0 {
		transientStates = defaultTransientStates
	}
	transient := make(map[string]struct{}, len(transientStates))
	for _, code := range transientStates {
		transient[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	return &Classifier{transient: transient}
}

// Kind classifies err. Auth beats transient: SQLSTATE class 28
// (invalid_authorization_specification, invalid_password) is always KindAuth
// even if someone configures it as transient.
func (c *Classifier) Kind(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "28") {
			return KindAuth
		}
		if _, ok := c.transient[pgErr.Code]; ok {
			return KindTransient
		}
		return KindOther
	}

	// Low-level connect failures carry no SQLSTATE but are worth retrying.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	return KindOther
}
