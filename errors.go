package courier

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("courier: no store configured")
	ErrNoSender        = errors.New("courier: no transport sender configured")
	ErrStoreClosed     = errors.New("courier: store closed")
	ErrMigrationFailed = errors.New("courier: migration failed")

	// Not found errors.
	ErrIssueNotFound      = errors.New("courier: issue not found")
	ErrScheduleNotFound   = errors.New("courier: schedule not found")
	ErrJobNotFound        = errors.New("courier: job not found")
	ErrSubscriberNotFound = errors.New("courier: subscriber not found")

	// Conflict errors.
	ErrJobAlreadyExists   = errors.New("courier: job already exists for issue and subscriber")
	ErrDuplicateOperation = errors.New("courier: duplicate operation detected")

	// Guard errors.
	ErrCircuitOpen   = errors.New("courier: circuit breaker is open")
	ErrNoSubscribers = errors.New("courier: no subscribers found for the selected target")

	// State errors.
	ErrNotBuilt               = errors.New("courier: not built, wire with engine.Build first")
	ErrJobNotRetryable        = errors.New("courier: job is not in failed status")
	ErrSubscriberUnsubscribed = errors.New("courier: subscriber has unsubscribed")

	// Token errors.
	ErrInvalidToken = errors.New("courier: invalid token")

	// Erasure must roll back atomically; a partial delete surfaces as this.
	ErrTransactionFailed = errors.New("courier: transaction failed")
)
