// Package registry is the server-side session registry for playback sync.
//
// A [Registry] creates sessions with a long id and a short join code, resolves either form,
// tracks the devices joined to each session and their reported positions, and sweeps
// expired sessions on a fixed interval. It holds no state of its own: every operation goes
// through an injected [models.Store], so the same registry runs on memory, SQLite or Postgres.
//
// Time comes from a [clockwork.Clock] so expiry and sweeping can be driven by a fake clock in tests.
package registry
