package domain

import "time"

// TokenType separates access tokens from refresh tokens. It is carried as an
// explicit claim and never inferred from lifetime.
type TokenType string

const (
	TokenAccess  TokenType = "ACCESS"
	TokenRefresh TokenType = "REFRESH"
)

// TokenClaims is the validated content of a bearer token. Roles are the
// snapshot taken at issuance. IdentityID is the stable id of the identity the
// token was issued to; Subject is its username at that time.
type TokenClaims struct {
	ID         string
	Subject    string
	IdentityID string
	Roles      []string
	Type       TokenType
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// LoginResult is a fresh token pair plus the profile it was issued for.
type LoginResult struct {
	Tokens  *TokenPair
	Profile *Profile
}

// Principal is the authenticated caller of a request. Roles and permissions
// are resolved from the store at request time, not taken from the token.
type Principal struct {
	IdentityID  string
	Username    string
	Roles       []string
	Permissions []string
	// Token is the raw access token the request was authenticated with.
	Token     string
	ExpiresAt time.Time
}

// Can reports whether the principal holds every one of perms.
func (p *Principal) Can(perms ...string) bool {
	if p == nil {
		return false
	}
	for _, want := range perms {
		found := false
		for _, have := range p.Permissions {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
