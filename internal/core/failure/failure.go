package failure

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type Kind string

const (
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// Error is the typed pipeline error every step failure is normalized into.
type Error struct {
	Step    string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " failure"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Permanent() bool { return e.Kind == KindPermanent }

// Permanent builds an error that is never retried.
func Permanent(step, format string, args ...any) *Error {
	return &Error{Step: step, Kind: KindPermanent, Message: fmt.Sprintf(format, args...)}
}

// Transient builds an error that is retried with backoff.
func Transient(step, format string, args ...any) *Error {
	return &Error{Step: step, Kind: KindTransient, Message: fmt.Sprintf(format, args...)}
}

// Classifier evaluates an ordered rule table; the first matching rule wins
// and anything unmatched is transient.
type Classifier struct {
	rules []Rule
}

// NewClassifier evaluates extra rules ahead of the built-in table.
func NewClassifier(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(extra)+len(defaultRules))
	rules = append(rules, extra...)
	rules = append(rules, defaultRules...)
	return &Classifier{rules: rules}
}

var defaultClassifier = NewClassifier()

// Classify uses the built-in rule table.
func Classify(err error) Kind {
	return defaultClassifier.Classify(err)
}

func (c *Classifier) Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != "" {
		return typed.Kind
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return KindPermanent
	}
	msg := err.Error()
	for _, rule := range c.rules {
		if rule.Match != nil && rule.Match(msg) {
			return rule.Kind
		}
	}
	return KindTransient
}

// Normalize converts any error raised by a step into *Error, keeping an
// existing typed error and filling in the step when it is missing.
func (c *Classifier) Normalize(step string, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		out := *typed
		if out.Step == "" {
			out.Step = step
		}
		if out.Kind == "" {
			out.Kind = c.Classify(errors.New(out.Error()))
		}
		return &out
	}
	return &Error{Step: step, Kind: c.Classify(err), Message: err.Error(), Err: err}
}

const (
	baseDelay = 3 * time.Second
	maxDelay  = 30 * time.Second
)

// RetryDelay is min(3s * 3^attempt, 30s).
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 3
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}
