// Package todolist owns the in-memory todo list and keeps it in step with the
// remote collection.
//
// A Controller is the single state container for a session. Views read
// snapshots from it and call Add, Toggle or Delete; each of those returns a
// Task whose Run performs the remote call on any goroutine, and whose Result
// is handed back to Settle on the owner's goroutine.
//
// How local state reacts to a mutation is decided by a Policy:
//
//   - Optimistic applies the change immediately, mirrors the full list to
//     the local store, and only logs the remote outcome. Startup falls back
//     to the mirror when the remote list cannot be fetched.
//   - Authoritative leaves the list untouched until the remote call
//     succeeds and then applies the server's representation. There is no
//     mirror and no fallback.
//
// The two are never blended. In optimistic mode an item keeps the id it was
// created with locally even if the server assigns another one; nothing
// reconciles the two.
//
// Requests follow idle -> in-flight -> settled-success | settled-failure.
// Nothing is retried, cancelled or rolled back.
package todolist
