package catalog

// Credentials are the storefront sign-in details. They are never persisted.
type Credentials struct {
	// Username is the account email.
	Username string
	// Password is the account password.
	Password string
}
