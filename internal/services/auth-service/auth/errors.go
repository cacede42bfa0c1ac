package auth

import "errors"

// Callers see only these; store and codec errors are folded into them.
var (
	ErrInvalidCredentials         = errors.New("invalid login or password")
	ErrInvalidRefreshToken        = errors.New("invalid refresh token")
	ErrInvalidAccessToken         = errors.New("invalid access token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrDuplicateLoginKey          = errors.New("login key already registered")
	ErrWeakPassword               = errors.New("password does not meet policy")
	ErrStorage                    = errors.New("credential store unavailable")
)
