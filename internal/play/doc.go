// Package play runs play sessions: it connects the devices of a creation
// as one unit, routes controller input through the active profile to
// device channels, and disconnects everything when the session ends.
//
// # Session bracket
//
//	NewSession ──▶ Run(ctx)
//	                 │  ShowProgress("Connecting...", cancellable)
//	                 │    Orchestrator.ConnectAll ── any failure ──▶ rollback, NavigateBack,
//	                 │                                              ErrConnectionFailed
//	                 │  InputSource.Subscribe
//	                 │  dispatch loop (single goroutine) until ctx ends
//	                 │  unsubscribe
//	                 │  ShowProgress("Disconnecting...") DisconnectAll
//	                 └─ NavigateBack
//
// The Player owns at most one session and refuses to start another until
// the previous one has finished tearing down.
//
// # Concurrency
//
// Connects and disconnects run concurrently with a bounded errgroup and a
// wait-all barrier. Dispatch never blocks on a device: SetChannelOutput is
// fire-and-forget. Profile selection swaps an atomic pointer read once
// per event.
package play
