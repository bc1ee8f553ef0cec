// Package password implements salted Argon2id password hashing.
//
// # Output format
//
// A [Digest] keeps the salt apart from the hash so both can be stored in
// their own columns:
//
//	Hash: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<key>
//	Salt: <base64 salt>
//
// Verification always uses the parameters recorded in the hash, so raising the
// cost settings never breaks existing accounts. [Argon2.NeedsUpgrade] reports
// digests produced with weaker settings.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Length rules for user
// passwords are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other mailAuth package.
//   - Log plaintext passwords.
package password
