package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrTutorialNotFound   = errors.New("tutorial not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
	ErrSlugConflict       = errors.New("tutorial slug already exists")
	ErrLeaseHeld          = errors.New("submission is being advanced by another worker")
	ErrNotRetryable       = errors.New("submission is not in a retryable state")
)

var (
	errEmptyURL          = errors.New("url is empty")
	errUnsupportedScheme = errors.New("only http and https urls are supported")
	errMissingHost       = errors.New("url has no host")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
