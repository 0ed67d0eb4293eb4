// Package goCampus is the client side of the campus course-management backend: it
// owns the signed-in user's session, mirrors it to durable storage, and issues
// authenticated, classified HTTP calls.
//
// A [Client] is assembled by [Builder.Build] and is safe to call from multiple
// goroutines. Each Client owns exactly one session; there is no package-level state.
//
// # Architecture boundaries
//
// goCampus is the public surface. It exposes [Client], [Builder], [Config], metrics
// and audit types, and re-exports the request and storage sentinel errors. Session
// semantics live in the session package, the request pipeline in api, UI side
// effects in notify, and durable backends in storage.
//
// # What this package must NOT do
//
//   - Keep a session outside a Client (no globals, no init-time I/O).
//   - Show UI directly. Every UI side effect goes through the injected
//     notify.Notifier.
//   - Import any sub-package that re-imports goCampus (no import cycles).
//
// # Failure contract
//
// Session operations (Login, Logout, CheckLogin, UpdateUserInfo) never return Go
// errors; they return a session.Result or a bool. Endpoint calls through [Client.API]
// return *api.Error values that match exactly one of [ErrBusiness],
// [ErrUnauthorized], [ErrHTTPStatus], [ErrTransport] or [ErrDecode].
package goCampus
