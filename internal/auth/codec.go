package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/NordCoder/Gatekeep/internal/domain/auth"
)

var (
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrWrongType        = errors.New("token type mismatch")
	ErrSigning          = errors.New("token signing unavailable")
)

type CodecConfig struct {
	Secret    []byte
	Algorithm string
	Now       func() time.Time
}

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// JWTCodec issues and verifies HMAC-signed tokens carrying sub, exp and type.
type JWTCodec struct {
	secret []byte
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

var _ domainauth.TokenCodec = (*JWTCodec)(nil)

func NewJWTCodec(cfg CodecConfig) (*JWTCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrSigning)
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrSigning, alg)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JWTCodec{
		secret: cfg.Secret,
		method: method,
		// exp is checked against our own clock below, after the signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: now,
	}, nil
}

func (c *JWTCodec) Issue(subject string, typ domainauth.TokenType, ttl time.Duration) (string, error) {
	now := c.now()
	claims := tokenClaims{
		Type: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// ParseAndVerify checks the signature, then expiry, then the type claim.
func (c *JWTCodec) ParseAndVerify(token string, expected domainauth.TokenType) (*domainauth.Claims, error) {
	var claims tokenClaims
	if _, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		return nil, ErrInvalidSignature
	}
	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, ErrInvalidSignature
	}
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	if claims.Type != string(expected) {
		return nil, ErrWrongType
	}

	out := &domainauth.Claims{
		Subject:   claims.Subject,
		Type:      domainauth.TokenType(claims.Type),
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
