// Package users models application user identities and their credentials:
// variant tagged users, bcrypt passwords, per user RSA key rings and the
// JWTs signed with them.
//
// Users:
//   - A User carries one Variant (anonymous, user, creator, admin). Admin
//     operations are reached through User.Admin, which fails for any other
//     variant.
//   - Directory builds users, resolves persisted Records back into users and
//     runs lookups, password and token authentication and archival.
//
// Keys:
//   - Every user owns a KeyStore with a signing and an encrypting KeyRing.
//     Rings are append-only and addressed newest-first, index 0 is the
//     current key. GenerateKeyPair is idempotent, RotateKeyPair always adds
//     a key. Artifacts (public PEM, JWK, private PEM) go through FileStorage
//     and are referenced relative to the user's directories.
//
// Tokens:
//   - TokenService signs access and refresh tokens with the current (or an
//     indexed) signing key and verifies them back, reporting routine
//     failures as a Verification value. KeySetVerifier verifies tokens
//     against a published JWKS document.
//
// Activity sinks:
//   - ActivitySink receives registration, login, archival and key events.
//     Sinks run best-effort, errors are logged.
package users
