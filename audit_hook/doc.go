// Package audithook is a Courier extension that bridges lifecycle
// events to the append-only audit trail.
//
// Every issue and job lifecycle hook emits a structured audit event
// through the [audit.Sink] interface. The extension assigns severity
// levels (info for normal operations, critical for failed sends) and
// rich metadata (issue, subscriber, elapsed time, errors).
//
// # Usage
//
//	courier.WithExtension(audithook.New(store))
//
// # Selective filtering
//
//	audithook.New(sink,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionIssueClosed,
//	    ),
//	)
package audithook
