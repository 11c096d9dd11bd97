package user

import "time"

// User is a registered account. Emails are case-insensitive: they are
// lowercased before they reach the repository, and the store enforces
// uniqueness on the lowercased form. Credential is the opaque
// salt+digest string produced by the credential package, never the
// plaintext password.
type User struct {
	ID         string
	Email      string
	Credential string
	CreatedAt  time.Time
}
