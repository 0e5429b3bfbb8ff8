package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/lock"
	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/metrics"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

// Client-facing messages that tests and the frontend rely on.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgVerifyBeforeLogin  = "Please verify your email address before logging in."
	MsgAccountDeactivated = "Account is deactivated. Please contact support."
	MsgInvalidRefresh     = "Invalid or expired refresh token"
	MsgForgotPassword     = "If an account exists with this email, a password reset link has been sent."
	MsgUserNotFound       = "User not found"
	MsgDeleteConfirmation = "DELETE"
)

// Notifier sends the auth emails.  *mailer.Mailer implements it.
type Notifier interface {
	SendVerification(to, name, token string, ttl time.Duration) error
	SendPasswordReset(to, name, token string, ttl time.Duration) error
}

// AuthConfig carries the secrets and lifetimes of the session manager.
type AuthConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AccessTTL         time.Duration
	RefreshWrapperTTL time.Duration
	VerifyTTL         time.Duration
	ResetTTL          time.Duration
	BcryptCost        int
}

// AuthService is the session manager: registration, login, refresh-token
// rotation, logout and the account self-service flows.
type AuthService struct {
	users  *repository.UserRepo
	tokens *TokenService
	mail   Notifier
	locker lock.Locker
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(users *repository.UserRepo, tokens *TokenService, mail Notifier, locker lock.Locker, cfg AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, mail: mail, locker: locker, cfg: cfg, log: log, now: time.Now}
}

// AuthResult is returned by register, login and refresh.  RefreshToken is
// empty after registration.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         model.PublicUser
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates an unverified account with role "user", sends the
// verification mail and returns an access token.  A failed mail does not
// undo the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	var details []string
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		details = append(details, "Name must be between 2 and 50 characters")
	}
	if !utils.ValidEmail(in.Email) {
		details = append(details, "Please provide a valid email")
	}
	details = append(details, utils.PasswordProblems(in.Password)...)
	if in.Password != in.ConfirmPassword {
		details = append(details, "Passwords do not match")
	}
	if len(details) > 0 {
		metrics.AuthRegistrationsTotal.WithLabelValues("invalid").Inc()
		return AuthResult{}, validationError("Validation failed", details...)
	}

	email := utils.NormalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		metrics.AuthRegistrationsTotal.WithLabelValues("duplicate").Inc()
		return AuthResult{}, newError(KindConflict, "User with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, external(s.log, err, "Registration failed")
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, external(s.log, err, "Registration failed")
	}
	u, err := s.users.Create(ctx, model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		return AuthResult{}, external(s.log, err, "Registration failed")
	}

	s.sendVerification(ctx, u)

	access, err := utils.NewAccessToken(s.cfg.AccessSecret, u.ID, u.Email, u.Role, s.cfg.AccessTTL, s.now())
	if err != nil {
		return AuthResult{}, external(s.log, err, "Registration failed")
	}
	metrics.AuthRegistrationsTotal.WithLabelValues("success").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("register", "success").Inc()
	s.log.Info("user registered", logging.UserID(u.ID), logging.Email(u.Email))
	return AuthResult{AccessToken: access.Token, User: u.Public()}, nil
}

// sendVerification issues a verification token and mails it.  Failures are
// logged and swallowed.
func (s *AuthService) sendVerification(ctx context.Context, u model.User) {
	token, err := s.tokens.IssueEmailVerification(ctx, u.ID)
	if err != nil {
		s.log.Error("issue verification token failed", logging.UserID(u.ID), zap.Error(err))
		return
	}
	if err := s.mail.SendVerification(u.Email, u.Name, token, s.cfg.VerifyTTL); err != nil {
		s.log.Warn("verification email failed", logging.UserID(u.ID), zap.Error(err))
	}
}

// Login checks the password first, so verification and activity state are
// never revealed to a caller without it.  Gate order after a correct
// password: verification, then active flag.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return AuthResult{}, validationError("Validation failed", "Email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return AuthResult{}, newError(KindAuth, MsgInvalidCredentials)
	}
	if err != nil {
		return AuthResult{}, external(s.log, err, "Login failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return AuthResult{}, newError(KindAuth, MsgInvalidCredentials)
	}
	if !u.IsEmailVerified {
		metrics.AuthLoginsTotal.WithLabelValues("unverified").Inc()
		return AuthResult{}, &Error{Kind: KindEmailNotVerified, Message: MsgVerifyBeforeLogin, Email: u.Email}
	}
	if !u.IsActive {
		metrics.AuthLoginsTotal.WithLabelValues("inactive").Inc()
		return AuthResult{}, newError(KindForbidden, MsgAccountDeactivated)
	}

	res, err := s.issueSession(ctx, u, "login")
	if err != nil {
		return AuthResult{}, err
	}
	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	s.log.Info("user logged in", logging.UserID(u.ID))
	return res, nil
}

// issueSession signs an access token and rotates the refresh secret.
func (s *AuthService) issueSession(ctx context.Context, u model.User, flow string) (AuthResult, error) {
	now := s.now()
	access, err := utils.NewAccessToken(s.cfg.AccessSecret, u.ID, u.Email, u.Role, s.cfg.AccessTTL, now)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues(flow, "error").Inc()
		return AuthResult{}, external(s.log, err, "Failed to issue tokens")
	}
	opaque, exp, err := s.tokens.IssueRefresh(ctx, u.ID)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues(flow, "error").Inc()
		return AuthResult{}, external(s.log, err, "Failed to issue tokens", logging.UserID(u.ID))
	}
	ttl := s.cfg.RefreshWrapperTTL
	if left := exp.Sub(now); ttl <= 0 || left < ttl {
		ttl = left
	}
	wrapped, err := utils.NewRefreshWrapper(s.cfg.RefreshSecret, u.ID, opaque, ttl, now)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues(flow, "error").Inc()
		return AuthResult{}, external(s.log, err, "Failed to issue tokens")
	}
	metrics.TokensIssuedTotal.WithLabelValues(flow, "success").Inc()
	return AuthResult{AccessToken: access.Token, RefreshToken: wrapped, User: u.Public()}, nil
}

// Refresh exchanges a refresh token for a new access token and a new
// refresh token.  The presented token is invalid afterwards, so replaying
// it fails.  Rotation for one user is serialized by a keyed lock.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, validationError("Refresh token required")
	}
	claims, err := utils.ParseRefreshWrapper(s.cfg.RefreshSecret, refreshToken)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", "invalid").Inc()
		return AuthResult{}, newError(KindForbidden, MsgInvalidRefresh)
	}

	release, err := s.locker.Acquire(ctx, "refresh:"+claims.UserID, 10*time.Second)
	if errors.Is(err, lock.ErrNotAcquired) {
		return AuthResult{}, newError(KindForbidden, MsgInvalidRefresh)
	}
	if err != nil {
		return AuthResult{}, external(s.log, err, "Failed to refresh token", logging.UserID(claims.UserID))
	}
	defer release()

	if err := s.tokens.VerifyRefresh(ctx, claims.UserID, claims.Token); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) || errors.Is(err, repository.ErrNotFound) {
			metrics.TokensIssuedTotal.WithLabelValues("refresh", "invalid").Inc()
			s.log.Info("refresh rejected", logging.UserID(claims.UserID), zap.Error(err))
			return AuthResult{}, newError(KindForbidden, MsgInvalidRefresh)
		}
		return AuthResult{}, external(s.log, err, "Failed to refresh token", logging.UserID(claims.UserID))
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, notFound(MsgUserNotFound)
	}
	if err != nil {
		return AuthResult{}, external(s.log, err, "Failed to refresh token", logging.UserID(claims.UserID))
	}
	if !u.IsActive {
		return AuthResult{}, newError(KindForbidden, MsgAccountDeactivated)
	}
	return s.issueSession(ctx, u, "refresh")
}

// Logout always succeeds.  When a decodable refresh token is supplied the
// stored secret for its user is cleared; every failure on that path is
// logged and dropped.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := utils.ParseRefreshWrapper(s.cfg.RefreshSecret, refreshToken)
	if err != nil {
		s.log.Debug("logout with undecodable refresh token")
		return
	}
	if err := s.tokens.ClearRefresh(ctx, claims.UserID); err != nil {
		s.log.Warn("logout: clear refresh token failed", logging.UserID(claims.UserID), zap.Error(err))
	}
}

// Profile returns the caller's public fields.
func (s *AuthService) Profile(ctx context.Context, userID string) (model.PublicUser, error) {
	u, err := s.loadUser(ctx, userID, "Failed to fetch profile")
	if err != nil {
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateProfile changes the display name.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (model.PublicUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.PublicUser{}, validationError("Name is required")
	}
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return model.PublicUser{}, validationError("Name must be between 2 and 50 characters")
	}
	if _, err := s.loadUser(ctx, userID, "Failed to update profile"); err != nil {
		return model.PublicUser{}, err
	}
	u, err := s.users.Update(ctx, userID, repository.UserUpdate{Name: &name})
	if err != nil {
		return model.PublicUser{}, external(s.log, err, "Failed to update profile", logging.UserID(userID))
	}
	return u.Public(), nil
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword requires the current password and applies the same
// complexity rule as registration.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return validationError("All password fields are required")
	}
	if in.NewPassword != in.ConfirmPassword {
		return validationError("New passwords do not match")
	}
	if problems := utils.PasswordProblems(in.NewPassword); len(problems) > 0 {
		return validationError(problems[0], problems...)
	}
	u, err := s.loadUser(ctx, userID, "Failed to change password")
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return newError(KindAuth, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(in.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		return external(s.log, err, "Failed to change password")
	}
	if _, err := s.users.Update(ctx, userID, repository.UserUpdate{PasswordHash: &hash, Reset: repository.Cleared()}); err != nil {
		return external(s.log, err, "Failed to change password", logging.UserID(userID))
	}
	s.log.Info("password changed", logging.UserID(userID))
	return nil
}

// ChangeEmail re-verifies the password, moves the account to the new
// address and marks it unverified.  A new verification mail goes to the
// new address.
func (s *AuthService) ChangeEmail(ctx context.Context, userID, newEmail, password string) (model.PublicUser, error) {
	if strings.TrimSpace(newEmail) == "" || password == "" {
		return model.PublicUser{}, validationError("New email and password are required")
	}
	if !utils.ValidEmail(newEmail) {
		return model.PublicUser{}, validationError("Invalid email format")
	}
	email := utils.NormalizeEmail(newEmail)

	other, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && other.ID != userID:
		return model.PublicUser{}, newError(KindConflict, "Email already in use")
	case err == nil:
		return model.PublicUser{}, validationError("New email must be different from the current one")
	case !errors.Is(err, repository.ErrNotFound):
		return model.PublicUser{}, external(s.log, err, "Failed to change email", logging.UserID(userID))
	}

	u, err := s.loadUser(ctx, userID, "Failed to change email")
	if err != nil {
		return model.PublicUser{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.PublicUser{}, newError(KindAuth, "Current password is incorrect")
	}
	unverified := false
	u, err = s.users.Update(ctx, userID, repository.UserUpdate{Email: &email, IsEmailVerified: &unverified})
	if err != nil {
		return model.PublicUser{}, external(s.log, err, "Failed to change email", logging.UserID(userID))
	}
	s.sendVerification(ctx, u)
	s.log.Info("email changed", logging.UserID(userID))
	return u.Public(), nil
}

// DeleteAccount hard-deletes the caller after the literal confirmation
// phrase and the password check.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password, confirm string) error {
	if confirm != MsgDeleteConfirmation {
		return validationError("Please type DELETE to confirm account deletion")
	}
	if password == "" {
		return validationError("Password is required to delete account")
	}
	u, err := s.loadUser(ctx, userID, "Failed to delete account")
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return newError(KindAuth, "Password is incorrect")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return external(s.log, err, "Failed to delete account", logging.UserID(userID))
	}
	s.log.Info("account deleted", logging.UserID(userID))
	return nil
}

// ForgotPassword returns the same message whether or not the account
// exists, and whether or not anything failed internally.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) string {
	if err := s.forgotPassword(ctx, email); err != nil {
		s.log.Warn("forgot password suppressed error", zap.Error(err))
	}
	return MsgForgotPassword
}

func (s *AuthService) forgotPassword(ctx context.Context, email string) error {
	if !utils.ValidEmail(email) {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.tokens.IssuePasswordReset(ctx, u.ID)
	if err != nil {
		return err
	}
	return s.mail.SendPasswordReset(u.Email, u.Name, token, s.cfg.ResetTTL)
}

type ResetPasswordInput struct {
	Email           string
	Token           string
	Password        string
	ConfirmPassword string
}

// ResetPassword consumes a reset token.  On success the reset pair and
// any refresh secret are cleared, ending existing sessions.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Token) == "" {
		return validationError("Validation failed", "Email and token are required")
	}
	if in.Password != in.ConfirmPassword {
		return validationError("Passwords do not match")
	}
	if problems := utils.PasswordProblems(in.Password); len(problems) > 0 {
		return validationError(problems[0], problems...)
	}
	u, err := s.users.GetByEmail(ctx, utils.NormalizeEmail(in.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgUserNotFound)
	}
	if err != nil {
		return external(s.log, err, "Failed to reset password")
	}
	if err := s.tokens.CheckReset(u, strings.TrimSpace(in.Token)); err != nil {
		return validationError("Invalid or expired reset token")
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return external(s.log, err, "Failed to reset password")
	}
	_, err = s.users.Update(ctx, u.ID, repository.UserUpdate{
		PasswordHash: &hash,
		Reset:        repository.Cleared(),
		Refresh:      repository.Cleared(),
	})
	if err != nil {
		return external(s.log, err, "Failed to reset password", logging.UserID(u.ID))
	}
	s.log.Info("password reset", logging.UserID(u.ID))
	return nil
}

// VerifyEmail consumes a verification token and marks the address
// verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, token string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(token) == "" {
		return validationError("Token and email are required")
	}
	u, err := s.users.GetByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgUserNotFound)
	}
	if err != nil {
		return external(s.log, err, "Failed to verify email")
	}
	switch err := s.tokens.CheckVerification(u, strings.TrimSpace(token)); {
	case errors.Is(err, ErrExpiredToken):
		return validationError("Verification token has expired. Please request a new one.")
	case err != nil:
		return validationError("Invalid verification token")
	}
	verified := true
	if _, err := s.users.Update(ctx, u.ID, repository.UserUpdate{
		IsEmailVerified: &verified,
		Verification:    repository.Cleared(),
	}); err != nil {
		return external(s.log, err, "Failed to verify email", logging.UserID(u.ID))
	}
	s.log.Info("email verified", logging.UserID(u.ID))
	return nil
}

// ResendVerification issues a new verification token for the caller.  Unlike
// registration, a mail failure is reported.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.loadUser(ctx, userID, "Failed to send verification email")
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return validationError("Email is already verified")
	}
	token, err := s.tokens.IssueEmailVerification(ctx, u.ID)
	if err != nil {
		return external(s.log, err, "Failed to send verification email", logging.UserID(userID))
	}
	if err := s.mail.SendVerification(u.Email, u.Name, token, s.cfg.VerifyTTL); err != nil {
		return external(s.log, err, "Failed to send verification email", logging.UserID(userID))
	}
	return nil
}

func (s *AuthService) loadUser(ctx context.Context, userID, failMsg string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, notFound(MsgUserNotFound)
	}
	if err != nil {
		return model.User{}, external(s.log, err, failMsg, logging.UserID(userID))
	}
	return u, nil
}
