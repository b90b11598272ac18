// Package engine wires all Courier subsystems together into the broadcast
// orchestrator. It creates the extension registry, middleware chain,
// reliability guards, and worker pool, and exposes the enqueue, stats,
// and retry operations.
//
// This package exists to break the import cycle: the root courier package
// defines Entity (imported by issue, job, subscriber) and so cannot import
// those packages back. The engine package sits above all subsystem
// packages and below the application layer.
//
// Typical usage:
//
//	c, _ := courier.New(courier.WithStore(memory.New()))
//	orc, _ := engine.Build(c, engine.WithSender(smtpSender))
//	_ = orc.Start(ctx)
//	defer orc.Stop(ctx)
//
//	res, err := orc.EnqueueNewsletter(ctx, "Weekly #1", html, issue.TargetVerified, "admin")
package engine
