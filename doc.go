// Package statsclient is the client for the game-statistics backend: it logs users in,
// keeps their bearer token, fetches player statistics, user info and the admin panel,
// and runs admin SQL queries over the backend's JSON HTTP API.
//
// Every authenticated call goes through [Client.Send], the request gateway. It attaches
// the bearer token held by the [session.Store], replaces that token whenever a response
// carries a New-Token header, and logs the user out when the backend reports the token
// as expired or invalid. Client methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// statsclient is the public surface. It exposes [Client], [Builder], [Config], the
// sentinel errors and the response DTOs. Session state and its persistence live in the
// session package; token claim inspection lives in the token package. Rendering and the
// command line are separate packages that only call the public API.
//
// # What this package must NOT do
//
//   - Log or emit bearer tokens, passwords or SQL query text.
//   - Enforce role access locally: role hints are informational and the backend decides.
//   - Mutate the session on anything other than login, logout, a New-Token header, or an
//     expiry-marked 401.
package statsclient
