// Package session provides the client side authentication session
// lifecycle: a status store, route guards, and the credential handoff that
// closes a federated login redirect.
//
// Session status:
//   - Status is exactly one of Unknown, Authenticated{user} or
//     Unauthenticated. A Store starts Unknown and only Initialize,
//     CompleteLogin, RefreshUser and Logout move it, following the
//     transition table in store.go. Nothing moves back to Unknown.
//   - Identity service failures never escape the store. They clear the
//     persisted credential, end in Unauthenticated, and are reported to the
//     Logger and the ActivitySink.
//
// Guards:
//   - RequireSession and RequireNoSession evaluate a Status into a Decision.
//     Unknown always yields ActionPending, so a reload never bounces an
//     authenticated user to the login view while Initialize is in flight.
//   - Guard.Watch subscribes to a StatusSource and re-evaluates on every
//     transition.
//
// Handoff:
//   - Handoff.Complete reads the credential from the callback query,
//     persists it, refreshes the store once, and performs a full navigation
//     to the landing path so the credential leaves the address bar.
//
// Storage backends live in the storage package, an HTTP identity client in
// identity, and go-router adapters in middleware/guardware.
package session
