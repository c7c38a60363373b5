package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Rejected calls were refused for the request itself, not upstream health.
	Rejected = ErrorClassification{}
	// Fault is an upstream failure that another attempt will not fix.
	Fault = ErrorClassification{RecordFailure: true}
)

// ClassifyContext handles the cases every upstream shares: caller
// cancellation and an open breaker. ok is false when err needs a
// provider-specific decision.
func ClassifyContext(err error) (class ErrorClassification, ok bool) {
	switch {
	case err == nil:
		return Rejected, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Rejected, true
	case IsCircuitOpen(err):
		return Transient, true
	}
	return ErrorClassification{}, false
}

// AsTemporary tags err as domain.ErrTemporary when classify says another
// attempt may succeed, so the pipeline retries the step.
func AsTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
