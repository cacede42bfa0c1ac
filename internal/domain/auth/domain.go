package auth

import "time"

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	Subject   string
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshToken is the server-side record of an issued refresh token.
// TokenHash is the digest of the token string, never the token itself.
type RefreshToken struct {
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

type ResetToken struct {
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// Subject is what Verify resolves an access token to.
type Subject struct {
	ID       string
	LoginKey string
}
