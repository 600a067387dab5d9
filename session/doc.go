// Package session holds the client-side authentication session: the current bearer
// token and role, and the persisters that let it survive a process restart.
//
// # State
//
// A [Store] is the single source of truth for one client process. It is ANONYMOUS when
// the token is empty and AUTHENTICATED otherwise. Set moves it to AUTHENTICATED, Rotate
// replaces the token without leaving AUTHENTICATED, Clear returns it to ANONYMOUS.
//
// Every Set and Clear advances the session epoch. Callers that act on a response to an
// earlier request use [Store.RotateAt] and [Store.ClearAt] so that a late response can
// never resurrect a cleared session or destroy a newer one.
//
// # Persistence
//
// The in-memory session is authoritative. A [Persister] receives every transition
// write-through, under the same lock, so the persisted order matches the in-memory order.
// Persistence errors are returned to the caller but never roll back the in-memory state.
//
// # What this package must NOT do
//
//   - Import statsclient (no upward imports).
//   - Interpret token contents or make authorization decisions.
//   - Log token values.
package session
