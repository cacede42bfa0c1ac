package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	credauth "github.com/NordCoder/Gatekeep/internal/auth"
	"github.com/NordCoder/Gatekeep/internal/domain"
	domainauth "github.com/NordCoder/Gatekeep/internal/domain/auth"
	"github.com/NordCoder/Gatekeep/internal/domain/identity"
	"github.com/NordCoder/Gatekeep/internal/obs"
)

const (
	TokenTypeBearer = "bearer"
	resetTokenBytes = 32
)

type Config struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
	MinPasswordLen int
	NotifyTimeout  time.Duration
	Now            func() time.Time
}

type Deps struct {
	Identities identity.Repo
	Refresh    domainauth.RefreshTokenRepo
	Resets     domainauth.ResetTokenRepo
	Tx         domainauth.Transactor
	Hasher     domainauth.PasswordHasher
	Codec      domainauth.TokenCodec
	Notifier   domainauth.Notifier
	// Outbox, when set, replaces Notifier: the reset event is enqueued in
	// the same transaction that issues the token.
	Outbox domainauth.ResetOutbox
	// Cache is optional.
	Cache  domainauth.IdentityCache
	Logger *zap.Logger
}

type Usecase struct {
	identities identity.Repo
	refresh    domainauth.RefreshTokenRepo
	resets     domainauth.ResetTokenRepo
	tx         domainauth.Transactor
	hasher     domainauth.PasswordHasher
	codec      domainauth.TokenCodec
	notifier   domainauth.Notifier
	outbox     domainauth.ResetOutbox
	cache      domainauth.IdentityCache
	log        *zap.Logger
	cfg        Config

	// compared against on lookup misses so they cost as much as a real check
	dummyHash string
	genToken  func(nBytes int) (string, error)
}

func NewUseCase(d Deps, cfg Config) (*Usecase, error) {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.MinPasswordLen <= 0 {
		cfg.MinPasswordLen = 8
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	dummy, err := d.Hasher.Hash("gatekeep-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	return &Usecase{
		identities: d.Identities,
		refresh:    d.Refresh,
		resets:     d.Resets,
		tx:         d.Tx,
		hasher:     d.Hasher,
		codec:      d.Codec,
		notifier:   d.Notifier,
		outbox:     d.Outbox,
		cache:      d.Cache,
		log:        log.With(zap.String("component", "auth.usecase")),
		cfg:        cfg,
		dummyHash:  dummy,
		genToken:   credauth.GenerateRawToken,
	}, nil
}

func normalizeLoginKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func (u *Usecase) checkPassword(password string) error {
	if len(password) < u.cfg.MinPasswordLen || len(password) > credauth.MaxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}

func (u *Usecase) Register(ctx context.Context, loginKey, password string) (*identity.Identity, error) {
	loginKey = normalizeLoginKey(loginKey)
	if err := u.checkPassword(password); err != nil {
		return nil, err
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rec, err := u.identities.Create(ctx, loginKey, hash)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrDuplicateLoginKey
		}
		return nil, storageErr("insert identity", err)
	}
	obs.WithTrace(ctx, u.log).Info("identity registered", zap.String("identity_id", rec.ID))
	return rec, nil
}

// Login never reveals whether the login key exists.
func (u *Usecase) Login(ctx context.Context, loginKey, password string) (*domainauth.TokenPair, error) {
	loginKey = normalizeLoginKey(loginKey)

	rec, err := u.identities.FindByLoginKey(ctx, loginKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.hasher.Verify(password, u.dummyHash)
			mLogin.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		mLogin.WithLabelValues("error").Inc()
		return nil, storageErr("find identity", err)
	}
	if !u.hasher.Verify(password, rec.PasswordHash) || !rec.IsActive {
		mLogin.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	// The shared lock orders this insert against a concurrent reset confirm:
	// either the confirm's revocation sees the new row, or the hash checked
	// above is found stale here.
	var pair *domainauth.TokenPair
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := u.identities.LockShared(ctx, rec.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return storageErr("lock identity", err)
		}
		if cur.PasswordHash != rec.PasswordHash || !cur.IsActive {
			return ErrInvalidCredentials
		}
		pair, err = u.issuePair(ctx, rec.ID)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		mLogin.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	case errors.Is(err, ErrStorage), errors.Is(err, credauth.ErrSigning):
		mLogin.WithLabelValues("error").Inc()
		return nil, err
	default:
		mLogin.WithLabelValues("error").Inc()
		return nil, storageErr("login", err)
	}
	mLogin.WithLabelValues("ok").Inc()
	obs.WithTrace(ctx, u.log).Info("login", zap.String("identity_id", rec.ID))
	return pair, nil
}

// issuePair mints both tokens and persists the refresh record. With ctx inside
// a transaction the insert joins it.
func (u *Usecase) issuePair(ctx context.Context, identityID string) (*domainauth.TokenPair, error) {
	access, err := u.codec.Issue(identityID, domainauth.TokenAccess, u.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := u.codec.Issue(identityID, domainauth.TokenRefresh, u.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh: %w", err)
	}
	rec := &domainauth.RefreshToken{
		IdentityID: identityID,
		TokenHash:  credauth.HashToken(refresh),
		ExpiresAt:  u.cfg.Now().Add(u.cfg.RefreshTTL),
	}
	if err := u.refresh.Create(ctx, rec); err != nil {
		return nil, storageErr("save refresh", err)
	}
	return &domainauth.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

// Refresh rotates a refresh token. The old record is revoked and the new one
// inserted in a single transaction; of concurrent callers presenting the
// same token at most one succeeds.
func (u *Usecase) Refresh(ctx context.Context, raw string) (*domainauth.TokenPair, error) {
	claims, err := u.codec.ParseAndVerify(raw, domainauth.TokenRefresh)
	if err != nil {
		mRefresh.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRefreshToken
	}

	var pair *domainauth.TokenPair
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := u.refresh.FindActive(ctx, credauth.HashToken(raw))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return storageErr("find refresh", err)
		}
		if !rec.ExpiresAt.After(u.cfg.Now()) || rec.IdentityID != claims.Subject {
			return ErrInvalidRefreshToken
		}
		// identity before refresh rows, the same order a reset confirm uses
		if err := u.identities.Lock(ctx, rec.IdentityID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return storageErr("lock identity", err)
		}
		if err := u.refresh.Revoke(ctx, rec.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return storageErr("revoke refresh", err)
		}
		pair, err = u.issuePair(ctx, rec.IdentityID)
		return err
	})
	switch {
	case err == nil:
		mRefresh.WithLabelValues("ok").Inc()
		return pair, nil
	case errors.Is(err, ErrInvalidRefreshToken):
		mRefresh.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRefreshToken
	case errors.Is(err, ErrStorage), errors.Is(err, credauth.ErrSigning):
		mRefresh.WithLabelValues("error").Inc()
		return nil, err
	default:
		// begin or commit failed
		mRefresh.WithLabelValues("error").Inc()
		return nil, storageErr("rotate refresh", err)
	}
}

// Verify resolves an access token to the identity it was issued for.
func (u *Usecase) Verify(ctx context.Context, token string) (*domainauth.Subject, error) {
	claims, err := u.codec.ParseAndVerify(token, domainauth.TokenAccess)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	rec, err := u.lookupIdentity(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, storageErr("verify lookup", err)
	}
	if !rec.IsActive {
		return nil, ErrInvalidAccessToken
	}
	return &domainauth.Subject{ID: rec.ID, LoginKey: rec.LoginKey}, nil
}

func (u *Usecase) lookupIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	if u.cache != nil {
		if rec, err := u.cache.Get(ctx, id); err == nil {
			return rec, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn("identity cache get", zap.Error(err))
		}
	}
	rec, err := u.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.cache != nil {
		if err := u.cache.Set(ctx, rec); err != nil {
			u.log.Warn("identity cache set", zap.Error(err))
		}
	}
	return rec, nil
}

// RequestPasswordReset returns nil for unknown login keys as well, so the
// response cannot be used to enumerate identities.
func (u *Usecase) RequestPasswordReset(ctx context.Context, loginKey string) error {
	loginKey = normalizeLoginKey(loginKey)
	log := obs.WithTrace(ctx, u.log)

	rec, err := u.identities.FindByLoginKey(ctx, loginKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mResetRequest.WithLabelValues("unknown").Inc()
			log.Info("password reset requested for unknown login key")
			return nil
		}
		mResetRequest.WithLabelValues("error").Inc()
		return storageErr("find identity", err)
	}

	raw, err := u.genToken(resetTokenBytes)
	if err != nil {
		mResetRequest.WithLabelValues("error").Inc()
		log.Error("generate reset token", zap.String("identity_id", rec.ID), zap.Error(err))
		return nil
	}
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.identities.Lock(ctx, rec.ID); err != nil {
			return err
		}
		if _, err := u.resets.InvalidateAllForIdentity(ctx, rec.ID); err != nil {
			return err
		}
		err := u.resets.Create(ctx, &domainauth.ResetToken{
			IdentityID: rec.ID,
			TokenHash:  credauth.HashToken(raw),
			ExpiresAt:  u.cfg.Now().Add(u.cfg.ResetTTL),
		})
		if err != nil || u.outbox == nil {
			return err
		}
		return u.outbox.EnqueueResetRequested(ctx, rec.LoginKey, raw)
	})
	if err != nil {
		// the caller already knows nothing about existence; keep it that way
		mResetRequest.WithLabelValues("error").Inc()
		log.Error("password reset issue failed", zap.String("identity_id", rec.ID), zap.Error(err))
		return nil
	}
	mResetRequest.WithLabelValues("issued").Inc()
	log.Info("password reset token issued", zap.String("identity_id", rec.ID))

	if u.outbox == nil {
		u.notify(ctx, rec.LoginKey, raw)
	}
	return nil
}

// notify is best effort and bounded by NotifyTimeout.
func (u *Usecase) notify(ctx context.Context, loginKey, raw string) {
	if u.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.NotifyTimeout)
	defer cancel()
	if err := u.notifier.SendResetEmail(nctx, loginKey, raw); err != nil {
		mNotifyErrors.Inc()
		obs.WithTrace(ctx, u.log).Warn("reset notification failed", zap.Error(err))
	}
}

// ConfirmPasswordReset consumes a reset token, sets the new password and
// revokes every refresh token of the identity, all in one transaction.
func (u *Usecase) ConfirmPasswordReset(ctx context.Context, raw, newPassword string) error {
	if err := u.checkPassword(newPassword); err != nil {
		mResetConfirm.WithLabelValues("invalid").Inc()
		return err
	}
	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var identityID string
	var revoked int64
	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		tok, err := u.resets.FindActive(ctx, credauth.HashToken(raw), u.cfg.Now())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidOrExpiredResetToken
			}
			return storageErr("find reset token", err)
		}
		identityID = tok.IdentityID
		if err := u.identities.UpdatePasswordHash(ctx, tok.IdentityID, hash); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidOrExpiredResetToken
			}
			return storageErr("update password", err)
		}
		if err := u.resets.MarkUsed(ctx, tok.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrInvalidOrExpiredResetToken
			}
			return storageErr("mark reset used", err)
		}
		revoked, err = u.refresh.RevokeAllForIdentity(ctx, tok.IdentityID)
		if err != nil {
			return storageErr("revoke refresh tokens", err)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidOrExpiredResetToken):
		mResetConfirm.WithLabelValues("invalid").Inc()
		return ErrInvalidOrExpiredResetToken
	case errors.Is(err, ErrStorage):
		mResetConfirm.WithLabelValues("error").Inc()
		return err
	default:
		mResetConfirm.WithLabelValues("error").Inc()
		return storageErr("confirm reset", err)
	}

	if u.cache != nil {
		if err := u.cache.Delete(ctx, identityID); err != nil {
			u.log.Warn("identity cache delete", zap.Error(err))
		}
	}
	mResetConfirm.WithLabelValues("ok").Inc()
	obs.WithTrace(ctx, u.log).Info("password reset confirmed",
		zap.String("identity_id", identityID),
		zap.Int64("refresh_revoked", revoked),
	)
	return nil
}
