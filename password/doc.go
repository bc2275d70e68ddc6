// Package password hashes and verifies account passwords with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads the parameters embedded in the hash, so hashes produced
// under older settings keep verifying. [Argon2.NeedsRehash] reports them so the
// caller can re-hash after the next successful login.
//
// This package owns hashing only. It never stores passwords, never logs them,
// and imports nothing else from this module.
package password
