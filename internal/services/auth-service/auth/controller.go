package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Gatekeep/internal/obs"
	"github.com/NordCoder/Gatekeep/internal/validator"
)

const maxBodyBytes = 1 << 20

type Controller struct {
	log *zap.Logger
	uc  *Usecase
}

type Opts struct {
	Logger *zap.Logger
}

func NewController(uc *Usecase, o Opts) *Controller {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{log: log.With(zap.String("component", "auth.http")), uc: uc}
}

type credentialsRequest struct {
	LoginKey string `json:"login_key" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	LoginKey string `json:"login_key" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// trimmer is implemented by requests whose fields are trimmed before
// validation.
type trimmer interface{ trim() }

func (r *credentialsRequest) trim() { r.LoginKey = strings.TrimSpace(r.LoginKey) }
func (r *loginRequest) trim()       { r.LoginKey = strings.TrimSpace(r.LoginKey) }
func (r *resetRequest) trim()       { r.LoginKey = strings.TrimSpace(r.LoginKey) }

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// resetRequest accepts any login key: the response must not depend on
// whether it is well formed or known.
type resetRequest struct {
	LoginKey string `json:"login_key" validate:"required,max=254"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type identityResponse struct {
	ID        string    `json:"id"`
	LoginKey  string    `json:"login_key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type verifyResponse struct {
	SubjectID string `json:"subject_id"`
	LoginKey  string `json:"login_key"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

const (
	msgResetRequested = "If the account exists, a password reset link has been sent."
	msgResetConfirmed = "Password has been reset successfully."
)

// Register handles POST /api/v1/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !c.decode(w, r, &req) {
		return
	}
	rec, err := c.uc.Register(r.Context(), req.LoginKey, req.Password)
	if err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		ID:        rec.ID,
		LoginKey:  rec.LoginKey,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

// Login handles POST /api/v1/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !c.decode(w, r, &req) {
		return
	}
	pair, err := c.uc.Login(r.Context(), req.LoginKey, req.Password)
	if err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

// Refresh handles POST /api/v1/refresh
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !c.decode(w, r, &req) {
		return
	}
	pair, err := c.uc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

// Verify handles POST /api/v1/token/verify. The token comes from the body or
// from an Authorization bearer header.
func (c *Controller) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	token := req.Token
	if token == "" {
		token = bearer(r)
	}
	if token == "" {
		c.mapErr(w, r, ErrInvalidAccessToken)
		return
	}
	sub, err := c.uc.Verify(r.Context(), token)
	if err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{SubjectID: sub.ID, LoginKey: sub.LoginKey})
}

// RequestPasswordReset handles POST /api/v1/password/reset
func (c *Controller) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !c.decode(w, r, &req) {
		return
	}
	if err := c.uc.RequestPasswordReset(r.Context(), req.LoginKey); err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetRequested})
}

// ConfirmPasswordReset handles POST /api/v1/password/reset/confirm
func (c *Controller) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !c.decode(w, r, &req) {
		return
	}
	if err := c.uc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		c.mapErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgResetConfirmed})
}

func (c *Controller) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if t, ok := dst.(trimmer); ok {
		t.trim()
	}
	if err := validator.Validate(dst); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Fields()})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (c *Controller) mapErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidAccessToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrDuplicateLoginKey),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidOrExpiredResetToken):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrStorage):
		obs.WithTrace(r.Context(), c.log).Error("storage failure", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: ErrStorage.Error()})
	default:
		obs.WithTrace(r.Context(), c.log).Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
