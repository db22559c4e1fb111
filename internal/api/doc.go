// Package api implements the HTTP REST API and WebSocket server for Brickplay Core.
//
// This package provides:
//   - REST endpoints for the device catalogue, creations and action binding
//   - Play session control: start, stop, profile switch and output level
//   - A remote UI surface: questions, progress and navigation pushed to
//     WebSocket clients and answered over REST or the socket
//   - JWT bearer authentication with role permissions and ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, Prometheus metrics, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The server sits between user interfaces and the play core. Binding edits
// go through creation.ActionEditor and creation.Binder; sessions run in
// play.Player. Both talk to the user through UISurface, which turns their
// dialogs into WebSocket events.
//
// # Security
//
// Tokens are minted offline with "brickplay token" and carry a role
// (viewer, operator, admin). WebSocket connections use single-use tickets
// to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and the audit repository are optional. Without them the
// corresponding status fields and endpoints report unavailable while the
// rest of the API keeps working.
package api
