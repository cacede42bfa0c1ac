package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/NordCoder/Gatekeep/internal/domain/auth"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCodec(t *testing.T, clk *fakeClock) *JWTCodec {
	t.Helper()
	c, err := NewJWTCodec(CodecConfig{Secret: []byte("test-secret"), Now: clk.Now})
	require.NoError(t, err)
	return c
}

func TestJWTCodec_RoundTrip(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, clk)

	tok, err := c.Issue("id-1", domainauth.TokenAccess, 30*time.Minute)
	require.NoError(t, err)

	claims, err := c.ParseAndVerify(tok, domainauth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.Subject)
	assert.Equal(t, domainauth.TokenAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, clk.t.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestJWTCodec_Expired(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, clk)

	tok, err := c.Issue("id-1", domainauth.TokenAccess, time.Minute)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = c.ParseAndVerify(tok, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestJWTCodec_WrongType(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)

	refresh, err := c.Issue("id-1", domainauth.TokenRefresh, time.Hour)
	require.NoError(t, err)
	_, err = c.ParseAndVerify(refresh, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrWrongType)

	access, err := c.Issue("id-1", domainauth.TokenAccess, time.Hour)
	require.NoError(t, err)
	_, err = c.ParseAndVerify(access, domainauth.TokenRefresh)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestJWTCodec_Tampered(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)

	tok, err := c.Issue("id-1", domainauth.TokenAccess, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	forged, err := c.Issue("id-2", domainauth.TokenAccess, time.Hour)
	require.NoError(t, err)
	// payload of one token with the signature of another
	swapped := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	_, err = c.ParseAndVerify(swapped, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.ParseAndVerify("not-a-token", domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTCodec_ForeignSecret(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)
	other, err := NewJWTCodec(CodecConfig{Secret: []byte("another-secret"), Now: clk.Now})
	require.NoError(t, err)

	tok, err := other.Issue("id-1", domainauth.TokenAccess, time.Hour)
	require.NoError(t, err)
	_, err = c.ParseAndVerify(tok, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTCodec_ExpiredForgeryReportsSignature(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)
	other, err := NewJWTCodec(CodecConfig{Secret: []byte("another-secret"), Now: clk.Now})
	require.NoError(t, err)

	tok, err := other.Issue("id-1", domainauth.TokenAccess, time.Second)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	_, err = c.ParseAndVerify(tok, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTCodec_RejectsNoneAlgorithm(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "id-1",
		"type": "access",
		"exp":  clk.t.Add(time.Hour).Unix(),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.ParseAndVerify(tok, domainauth.TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTCodec_UniquePerIssue(t *testing.T) {
	clk := &fakeClock{t: time.Now().UTC()}
	c := newCodec(t, clk)

	a, err := c.Issue("id-1", domainauth.TokenRefresh, time.Hour)
	require.NoError(t, err)
	b, err := c.Issue("id-1", domainauth.TokenRefresh, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewJWTCodec_Config(t *testing.T) {
	_, err := NewJWTCodec(CodecConfig{})
	assert.ErrorIs(t, err, ErrSigning)

	_, err = NewJWTCodec(CodecConfig{Secret: []byte("x"), Algorithm: "RS256"})
	assert.ErrorIs(t, err, ErrSigning)

	c, err := NewJWTCodec(CodecConfig{Secret: []byte("x"), Algorithm: "HS512"})
	require.NoError(t, err)
	assert.Equal(t, "HS512", c.method.Alg())
}
