package domain

// Identity is the authenticated owner of a ledger. Every transaction is
// scoped to exactly one identity; there is no cross-user visibility.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// Session is what the session provider hands back after a successful
// sign-in, sign-up or guest entry.
type Session struct {
	Identity     Identity `json:"identity"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int      `json:"expires_in"` // seconds
}

// CredentialsRequest is the body of sign-in and sign-up calls.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a fresh session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
