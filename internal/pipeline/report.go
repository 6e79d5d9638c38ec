package pipeline

import (
	"fmt"
	"time"

	"github.com/KevanReatha/flight-price-tracker/internal/warehouse"
)

// Outcome is the terminal state of one run.
type Outcome int

const (
	// OutcomeSkipped means the breaker was open and nothing was attempted.
	OutcomeSkipped Outcome = iota

	// OutcomeSucceeded means ingestion and transform both completed.
	OutcomeSucceeded

	// OutcomeFailed means ingestion failed after retries without an auth
	// signal; the next schedule tick will try again.
	OutcomeFailed

	// OutcomeFailedHard means an auth/lockout failure opened the breaker;
	// an operator must clear it before runs resume.
	OutcomeFailedHard

	// OutcomeTransformFailed means ingestion committed but the transform
	// step failed.
	OutcomeTransformFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeFailedHard:
		return "failed-hard"
	case OutcomeTransformFailed:
		return "transform-failed"
	default:
		return "unknown"
	}
}

// Report describes one run with enough detail for an operator to tell
// "breaker open, skipped" from "transient, will retry next tick" from
// "hard failure, clear the breaker".
type Report struct {
	Outcome       Outcome
	Kind          warehouse.ErrorKind
	QuotesWritten int
	RawWritten    int
	Attempts      int
	Started       time.Time
	Finished      time.Time
	Err           error
}

// Failed reports whether the run should exit non-zero. A skipped run is not
// a failure: the breaker doing its job is the expected steady state until
// an operator intervenes.
func (r Report) Failed() bool {
	return r.Outcome == OutcomeFailed || r.Outcome == OutcomeFailedHard || r.Outcome == OutcomeTransformFailed
}

// Summary renders a one-paragraph operator message.
func (r Report) Summary() string {
	switch r.Outcome {
	case OutcomeSkipped:
		return "Run skipped: circuit breaker is open. Clear it once warehouse credentials are fixed."
	case OutcomeSucceeded:
		return fmt.Sprintf("Run succeeded: %d quotes upserted (%d raw snapshots) in %d attempt(s), took %s.",
			r.QuotesWritten, r.RawWritten, r.Attempts, r.Finished.Sub(r.Started).Round(time.Second))
	case OutcomeFailed:
		if r.Attempts == 0 {
			return fmt.Sprintf("Run failed before ingestion started: %v. Will retry on the next schedule tick.", r.Err)
		}
		return fmt.Sprintf("Run failed (%s) after %d attempt(s): %v. Will retry on the next schedule tick.",
			r.Kind, r.Attempts, r.Err)
	case OutcomeFailedHard:
		return fmt.Sprintf("Run failed hard (auth/lockout) after %d attempt(s): %v. Circuit breaker opened - operator action required.",
			r.Attempts, r.Err)
	case OutcomeTransformFailed:
		return fmt.Sprintf("Ingestion committed %d quotes but the transform step failed: %v. Ingested rows are kept.",
			r.QuotesWritten, r.Err)
	default:
		return "Run finished in an unknown state."
	}
}
