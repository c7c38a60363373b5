package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

// reconnecting lists the errors a publish hits while the client is between
// servers. The client buffers and reconnects on its own, so a later attempt
// can succeed.
var reconnecting = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

// classifyPublishError decides whether a submission id publish is worth
// retrying. A bad subject or oversized payload is a configuration fault.
func classifyPublishError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	for _, target := range reconnecting {
		if errors.Is(err, target) {
			return resilience.Transient
		}
	}
	return resilience.Fault
}
