// Package middleware provides composable middleware for send execution.
//
// A [Middleware] is a function that wraps the per-job send. Middleware
// are composed into a chain using [Chain] and applied around each send.
// They are applied right-to-left: the first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs job, issue, duration, and outcome at each send
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the send context after a configured duration
//   - [Tracing] — wraps the send in an OpenTelemetry span
//   - [Metrics] — records per-send duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
