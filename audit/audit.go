// Package audit defines the append-only audit trail contract. The
// orchestrator writes one summary event per broadcast enqueue, and the
// audit_hook extension bridges job lifecycle events into the same sink.
package audit

import (
	"context"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one append-only audit record.
type Event struct {
	courier.Entity

	ID id.AuditID `json:"id"`

	// What happened.
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Who did it. Empty for system-initiated events.
	ActorID string `json:"actor_id,omitempty"`

	// Details.
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Sink is the append-only destination for audit events.
type Sink interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// SinkFunc is an adapter to use a plain function as a Sink.
type SinkFunc func(ctx context.Context, event *Event) error

func (f SinkFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
