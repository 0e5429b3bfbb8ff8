package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

var (
	// ErrInvalidToken means the presented secret does not match the stored
	// one, or none is stored.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the secret matched but its expiry has passed.
	ErrExpiredToken = errors.New("expired token")
)

// TokenTTLs are the lifetimes of the single-use secrets.
type TokenTTLs struct {
	Verification time.Duration
	Reset        time.Duration
	Refresh      time.Duration
}

// TokenService generates, persists and checks the per-user secrets:
// email-verification, password-reset and refresh tokens.  Each secret is
// 256 bits of randomness handed to the user in hex; only its SHA-256 hash
// is stored.  A user has at most one secret of each kind; issuing a new
// one overwrites the previous.
type TokenService struct {
	users *repository.UserRepo
	ttl   TokenTTLs
	now   func() time.Time
}

func NewTokenService(users *repository.UserRepo, ttl TokenTTLs) *TokenService {
	return &TokenService{users: users, ttl: ttl, now: time.Now}
}

// issue stores a fresh secret in the slot chosen by set.
func (s *TokenService) issue(ctx context.Context, userID string, ttl time.Duration, set func(*repository.UserUpdate, *repository.TokenPair)) (string, time.Time, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := s.now().UTC().Add(ttl)
	var upd repository.UserUpdate
	set(&upd, &repository.TokenPair{Hash: utils.HashToken(raw), Exp: &exp})
	if _, err := s.users.Update(ctx, userID, upd); err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

// IssueEmailVerification stores a verification secret that expires after
// the configured verification TTL.
func (s *TokenService) IssueEmailVerification(ctx context.Context, userID string) (string, error) {
	raw, _, err := s.issue(ctx, userID, s.ttl.Verification, func(u *repository.UserUpdate, p *repository.TokenPair) { u.Verification = p })
	return raw, err
}

// IssuePasswordReset stores a reset secret valid for the reset TTL.
func (s *TokenService) IssuePasswordReset(ctx context.Context, userID string) (string, error) {
	raw, _, err := s.issue(ctx, userID, s.ttl.Reset, func(u *repository.UserUpdate, p *repository.TokenPair) { u.Reset = p })
	return raw, err
}

// IssueRefresh stores a new refresh secret, replacing any previous one, and
// returns it with its expiry.
func (s *TokenService) IssueRefresh(ctx context.Context, userID string) (string, time.Time, error) {
	return s.issue(ctx, userID, s.ttl.Refresh, func(u *repository.UserUpdate, p *repository.TokenPair) { u.Refresh = p })
}

// VerifyPasswordReset succeeds iff token matches the stored reset secret
// and the expiry is still in the future.  It does not clear the secret.
func (s *TokenService) VerifyPasswordReset(ctx context.Context, userID, token string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.CheckReset(u, token)
}

// VerifyRefresh succeeds iff token matches the stored refresh secret and
// has not expired.  Rotation is the caller's job.
func (s *TokenService) VerifyRefresh(ctx context.Context, userID, token string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.check(u.RefreshHash, u.RefreshExp, token)
}

// CheckReset validates a reset token against an already loaded user.
func (s *TokenService) CheckReset(u model.User, token string) error {
	return s.check(u.ResetHash, u.ResetExp, token)
}

// CheckVerification validates an email-verification token.  Tokens stored
// without an expiry remain valid until consumed.
func (s *TokenService) CheckVerification(u model.User, token string) error {
	if u.VerificationHash == "" || !hashMatches(u.VerificationHash, token) {
		return ErrInvalidToken
	}
	if u.VerificationExp != nil && !s.now().Before(*u.VerificationExp) {
		return ErrExpiredToken
	}
	return nil
}

// ClearRefresh nulls the refresh pair.  Users without a stored token are
// fine.
func (s *TokenService) ClearRefresh(ctx context.Context, userID string) error {
	_, err := s.users.Update(ctx, userID, repository.UserUpdate{Refresh: repository.Cleared()})
	return err
}

func (s *TokenService) check(hash string, exp *time.Time, token string) error {
	if hash == "" || exp == nil || !hashMatches(hash, token) {
		return ErrInvalidToken
	}
	if !s.now().Before(*exp) {
		return ErrExpiredToken
	}
	return nil
}

func hashMatches(stored, token string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(utils.HashToken(token))) == 1
}
