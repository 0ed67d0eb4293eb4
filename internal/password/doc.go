// Package password hashes account passwords for the mock backend with Argon2id.
//
// Hashes use the PHC string form:
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Verification reads the cost parameters from the stored hash, so accounts hashed
// under an older [Params] keep working after the cost changes.
//
// # What this package must NOT do
//
//   - Keep plaintext after Hash returns.
//   - Log passwords or hashes.
//   - Import other goCampus packages.
package password
