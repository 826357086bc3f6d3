package catalog

import (
	"fmt"

	"github.com/oshokin/carnival/internal/domain/product"
)

// Storefront status values.
const (
	statusSuccess = "success"
	userFound     = "true"
)

// UserInfo is the signed-in user's profile as reported by the storefront.
type UserInfo struct {
	// Status is the storefront's request status.
	Status string `json:"status" yaml:"status"`
	// UserFound is "true" when the session belongs to a user.
	UserFound string `json:"user_found" yaml:"user_found"`
	// Email is the account email.
	Email string `json:"_indiegala_user_email" yaml:"email,omitempty"`
	// Username is the account display name.
	Username string `json:"_indiegala_username" yaml:"username,omitempty"`
	// UserID is the numeric account identifier.
	UserID uint64 `json:"_indiegala_user_id" yaml:"user_id,omitempty"`
}

// LoggedIn reports whether the profile describes a valid session.
func (u *UserInfo) LoggedIn() bool {
	return u.Status == statusSuccess && u.UserFound == userFound
}

// String renders the profile for the sync summary.
func (u *UserInfo) String() string {
	if u.Username == "" {
		return u.Email
	}

	return fmt.Sprintf("%s <%s>", u.Username, u.Email)
}

// userInfoResponse is the full user_info payload.
type userInfoResponse struct {
	UserInfo

	ShowcaseContent *struct {
		Content struct {
			UserCollection []product.Product `json:"user_collection"`
		} `json:"content"`
	} `json:"showcase_content"`
}

// SyncResult is everything a successful sync replaces locally.
type SyncResult struct {
	// User is the refreshed profile.
	User UserInfo
	// Library is the purchased collection.
	Library product.Library
	// Session carries cookies refreshed by the storefront.
	Session Session
}
