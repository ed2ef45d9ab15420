// Package accounts provides a user account lifecycle service (registration,
// activation, profile and group management, status listings) backed by Bun
// repositories, with email notification and failed-login throttling.
//
// Lifecycle:
//   - Users are created unactivated with a one-time activation code. The
//     code is mailed out on registration, consumed exactly once on
//     activation, and can be re-sent for accounts that never activated.
//   - Profile updates sync group membership exhaustively: every group in
//     the catalog is evaluated against the desired set, so the stored
//     membership always mirrors it.
//
// Throttling:
//   - ThrottleTracker owns the Clear -> Suspended -> Banned progression.
//     Suspensions are timed holds that lapse on their own; bans are
//     terminal. Listings fold throttle state into a status label where ban
//     outranks suspension and both outrank activation state.
//
// Outcomes:
//   - Operations return an Outcome (success flag plus display message)
//     instead of raising typed failures at the caller. Only infrastructure
//     errors propagate.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the lifecycle
//     service and the throttle tracker. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     account operations.
package accounts
