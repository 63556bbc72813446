// Package server exposes the sync service over HTTP.
//
// # Routes
//
//	POST /api/sync/session   create, join, update, get and leave actions
//	GET  /api/now-playing    snapshot from the configured player
//	GET  /api/lyrics         lyrics for ?title=&artist=, aligned to ?durationMs=
//	GET  /api/history        top songs and recent plays
//	POST /api/history        record one snapshot
//	GET  /healthz            liveness
//
// Errors are JSON objects of the form {"error": "..."}; the status comes from the sentinel the
// failure wraps (404 for unknown sessions or devices, 400 for malformed requests).
//
// # Router Infrastructure
//
// [BasicRouter] uses [http.ServeMux] method patterns, so a wrong method on a known path answers 405.
// [Middleware] wraps the whole mux in reverse order (last added executes first). [Server] installs
// panic recovery, request logging, CORS and a per-address rate limiter.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the one-shot callback for `auth spotify`. It validates the state
// parameter, exchanges the code and hands the token back through a channel.
package server
