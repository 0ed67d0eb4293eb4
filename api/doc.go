// Package api is the outbound gateway to the campus backend.
//
// Every call goes through [Gateway]: the path is joined to the configured base URL,
// the bearer token from the injected [TokenSource] is attached, the response is
// classified by the pure [Classify] function, and only then are side effects
// (loading indicator, [Reactor]) invoked. Endpoint bindings on [API] map a verb, a
// path and a payload shape onto [Gateway.Request] and carry no logic of their own.
//
// # Result contract
//
// The backend wraps every body in an [Envelope]. Business success requires both
// transport status 200 and envelope code 200. Everything else is returned as an
// [*Error] whose [Kind] tells the caller what happened.
//
// # What this package must NOT do
//
//   - Own session state. The token is read through [TokenSource] on every call.
//   - Retry. One invocation is one outbound attempt.
//   - Render UI. Loading and notifications are delegated to [Loading] and [Reactor].
package api
