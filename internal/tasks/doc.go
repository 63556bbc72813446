// Package tasks runs a device's side of a sync session with real-time event reporting.
//
// # Roles
//
// A [Coordinator] plays one of two roles, chosen by the client:
//
//  1. [RoleHost] : reads the local player every HostInterval
//     - Makes each observation the interpolator's ground truth
//     - Pushes the position with an update action; failures wait for the next tick
//     - Skips the push while nothing is playing
//
//  2. [RoleFollower] : polls the session every PollInterval
//     - Adopts currentProgressMs and isPlaying, captured at receipt
//     - Never pushes its position
//     - Reads track metadata from its own player when one is configured
//
// Both roles refresh the device roster from the same poll, and both render the interpolated
// position every TickInterval.
//
// # Lifecycle
//
// Start joins the session and launches the loops as one task group bound to its context.
// Stop cancels the group, waits for it, and sends a best-effort leave. Responses that arrive
// after cancellation are discarded.
//
// # Event Reporting
//
// Events are sent on a channel with select/default so a slow consumer never stalls a loop.
// [EventTrackEnded] fires once per track when the interpolated percentage reaches
// [TrackEndThreshold]; a track change re-arms it.
package tasks
