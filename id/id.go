// Package id defines TypeID-based identity types for all Courier entities.
//
// Every entity in Courier uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Courier entity types.
const (
	PrefixIssue       Prefix = "iss"
	PrefixJob         Prefix = "job"
	PrefixSubscriber  Prefix = "sub"
	PrefixConsent     Prefix = "cons"
	PrefixInteraction Prefix = "intr"
	PrefixAudit       Prefix = "adt"
	PrefixWorker      Prefix = "wkr"
	PrefixSchedule    Prefix = "sched"
)

// ID is the primary identifier type for all Courier entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "job_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// IssueID is a type-safe identifier for broadcast issues (prefix: "iss").
type IssueID = ID

// JobID is a type-safe identifier for delivery jobs (prefix: "job").
type JobID = ID

// SubscriberID is a type-safe identifier for subscribers (prefix: "sub").
type SubscriberID = ID

// ConsentID is a type-safe identifier for consent records (prefix: "cons").
type ConsentID = ID

// InteractionID is a type-safe identifier for interaction records (prefix: "intr").
type InteractionID = ID

// AuditID is a type-safe identifier for audit events (prefix: "adt").
type AuditID = ID

// WorkerID is a type-safe identifier for workers (prefix: "wkr").
type WorkerID = ID

// ScheduleID is a type-safe identifier for schedule entries (prefix: "sched").
type ScheduleID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewIssueID generates a new unique issue ID.
func NewIssueID() ID { return New(PrefixIssue) }

// NewJobID generates a new unique job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewSubscriberID generates a new unique subscriber ID.
func NewSubscriberID() ID { return New(PrefixSubscriber) }

// NewConsentID generates a new unique consent record ID.
func NewConsentID() ID { return New(PrefixConsent) }

// NewInteractionID generates a new unique interaction record ID.
func NewInteractionID() ID { return New(PrefixInteraction) }

// NewAuditID generates a new unique audit event ID.
func NewAuditID() ID { return New(PrefixAudit) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// NewScheduleID generates a new unique schedule entry ID.
func NewScheduleID() ID { return New(PrefixSchedule) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseIssueID parses a string and validates the "iss" prefix.
func ParseIssueID(s string) (ID, error) { return ParseWithPrefix(s, PrefixIssue) }

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseSubscriberID parses a string and validates the "sub" prefix.
func ParseSubscriberID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscriber) }

// ParseConsentID parses a string and validates the "cons" prefix.
func ParseConsentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixConsent) }

// ParseInteractionID parses a string and validates the "intr" prefix.
func ParseInteractionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInteraction) }

// ParseAuditID parses a string and validates the "adt" prefix.
func ParseAuditID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAudit) }

// ParseWorkerID parses a string and validates the "wkr" prefix.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// ParseScheduleID parses a string and validates the "sched" prefix.
func ParseScheduleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSchedule) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
