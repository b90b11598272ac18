// Package job defines the per-subscriber delivery unit, its state
// machine, and the store interface.
//
// # Job Entity
//
// A [Job] represents one delivery of one issue to one subscriber. It
// embeds [courier.Entity] for timestamps and progresses through a state
// machine:
//
//	pending → processing → completed
//	pending → processing → failed
//	failed → pending (explicit retry only, never automatic)
//
// Completed and failed are terminal. At most one job exists per
// (issue, subscriber) pair; stores enforce the uniqueness and report
// violations as [courier.ErrJobAlreadyExists].
//
// # Claiming
//
// Workers claim a job through [Store.ClaimJob], a single atomic
// conditional update (pending → processing with an affected-row check).
// A plain read-then-write claim races under concurrent workers; the
// store contract rules it out. The worker that claimed a job is the only
// mutator of that job until it reaches a terminal state.
package job
