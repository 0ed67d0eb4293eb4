// Package session owns the authenticated-user state of one client and mirrors it to
// durable key-value storage.
//
// # State
//
// A [Store] holds exactly one [State]: the user record, the login flag and the bearer
// token. Readers get copies through [Store.Snapshot]; every mutation is applied under
// one lock so no partially cleared or partially merged state is ever observable.
//
// # Stored encoding
//
// The user record is persisted under the "userInfo" key as a versioned JSON envelope
// ({"v":2,"user":{...}}). Unversioned records written by older front-ends, including
// those with a string "role", are migrated on read.
//
// # Architecture boundaries
//
// This package owns login, logout, restore and profile merge. It does NOT send HTTP
// requests itself (an [Authenticator] does), render notifications, or decide how a
// failed call is surfaced to the user.
//
// # What this package must NOT do
//
//   - Import the root goCampus package (no upward imports).
//   - Return a Go error from [Store.Login] or [Store.Logout]; failures become a [Result].
//   - Write keys other than "token" and "userInfo".
package session
