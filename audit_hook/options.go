package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits the extension to the listed actions. The default
// is every action in [AllActions]. Filtering matters mostly for
// high-volume broadcasts where per-job started/completed events would
// dominate the audit table:
//
//	audithook.New(sink,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionIssueClosed,
//	    ),
//	)
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		enabled := make(map[string]bool, len(actions))
		for _, action := range actions {
			enabled[action] = true
		}
		e.enabled = enabled
	}
}

// WithLogger sets the logger used for sink write failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
