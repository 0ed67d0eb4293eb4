// Package jwt reads and, for the mock backend, issues campus access tokens.
//
// The client never needs to trust a token: the backend is the authority. [Inspect]
// and [ExpiresAt] only read claims so the session store can tell when a persisted
// token has lapsed. [Manager] signs and verifies HS256 tokens for components that
// hold the shared secret.
package jwt
