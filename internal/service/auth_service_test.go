package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

func TestRegisterCreatesUnverifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.auth.Register(ctx, RegisterInput{
		Name:            "Jane Doe",
		Email:           "Jane.Doe@Gmail.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "janedoe@gmail.com", res.User.Email)
	assert.Equal(t, model.RoleUser, res.User.Role)
	assert.False(t, res.User.IsEmailVerified)
	assert.Empty(t, res.RefreshToken)

	claims, err := utils.ParseAccessToken(testAccessSecret, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	stored, err := f.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, stored.PasswordHash)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, testPassword))
	assert.NotEmpty(t, stored.VerificationHash)

	mail := f.mail.lastVerification()
	assert.Equal(t, "janedoe@gmail.com", mail.to)
	assert.Equal(t, utils.HashToken(mail.token), stored.VerificationHash)
	assert.NotEqual(t, mail.token, stored.VerificationHash)
}

func TestRegisterRejectsDuplicateAndWeakInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "taken@example.com", true, true)

	_, err := f.auth.Register(ctx, RegisterInput{Name: "X Y", Email: "TAKEN@example.com", Password: testPassword, ConfirmPassword: testPassword})
	requireKind(t, err, KindConflict)

	_, err = f.auth.Register(ctx, RegisterInput{Name: "A", Email: "not-an-email", Password: "short", ConfirmPassword: "other"})
	se := requireKind(t, err, KindValidation)
	assert.GreaterOrEqual(t, len(se.Details), 3)
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	f := newFixture(t)
	f.mail.failWith = assert.AnError
	_, err := f.auth.Register(context.Background(), RegisterInput{Name: "Jane", Email: "jane@example.com", Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
}

func TestLoginGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "ok@example.com", true, true)
	f.seedUser(t, "unverified@example.com", false, true)
	f.seedUser(t, "both@example.com", false, false)
	f.seedUser(t, "inactive@example.com", true, false)

	res, err := f.auth.Login(ctx, "OK@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	se := requireKind(t, f.loginErr("unverified@example.com", testPassword), KindEmailNotVerified)
	assert.Equal(t, "unverified@example.com", se.Email)
	assert.Equal(t, MsgVerifyBeforeLogin, se.Message)

	// verification is checked before the active flag
	requireKind(t, f.loginErr("both@example.com", testPassword), KindEmailNotVerified)

	se = requireKind(t, f.loginErr("inactive@example.com", testPassword), KindForbidden)
	assert.Equal(t, MsgAccountDeactivated, se.Message)

	// unknown account and wrong password are indistinguishable
	a := requireKind(t, f.loginErr("nobody@example.com", testPassword), KindAuth)
	b := requireKind(t, f.loginErr("ok@example.com", "Wrong1234"), KindAuth)
	assert.Equal(t, a.Message, b.Message)

	// gates are not revealed without the password
	requireKind(t, f.loginErr("unverified@example.com", "Wrong1234"), KindAuth)
}

func (f *fixture) loginErr(email, password string) error {
	_, err := f.auth.Login(context.Background(), email, password)
	return err
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "rot@example.com", true, true)

	login, err := f.auth.Login(ctx, "rot@example.com", testPassword)
	require.NoError(t, err)

	next, err := f.auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, next.RefreshToken)
	assert.NotEmpty(t, next.AccessToken)

	se := requireKind(t, errOf(f.auth.Refresh(ctx, login.RefreshToken)), KindForbidden)
	assert.Equal(t, MsgInvalidRefresh, se.Message)

	_, err = f.auth.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func errOf(_ AuthResult, err error) error { return err }

func TestRefreshRejectsGarbageAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requireKind(t, errOf(f.auth.Refresh(ctx, "")), KindValidation)
	requireKind(t, errOf(f.auth.Refresh(ctx, "not-a-token")), KindForbidden)

	// signed with the access secret instead of the refresh secret
	wrong, err := utils.NewRefreshWrapper(testAccessSecret, "recX", "abc", time.Hour, time.Now())
	require.NoError(t, err)
	requireKind(t, errOf(f.auth.Refresh(ctx, wrong)), KindForbidden)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "later@example.com", true, true)
	login, err := f.auth.Login(ctx, "later@example.com", testPassword)
	require.NoError(t, err)

	inactive := false
	_, err = f.users.Update(ctx, u.ID, repository.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	requireKind(t, errOf(f.auth.Refresh(ctx, login.RefreshToken)), KindForbidden)
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "out@example.com", true, true)
	login, err := f.auth.Login(ctx, "out@example.com", testPassword)
	require.NoError(t, err)

	f.auth.Logout(ctx, login.RefreshToken)
	requireKind(t, errOf(f.auth.Refresh(ctx, login.RefreshToken)), KindForbidden)

	// never fails, whatever it is handed
	f.auth.Logout(ctx, "")
	f.auth.Logout(ctx, "garbage")
	f.auth.Logout(ctx, login.RefreshToken)
}

func TestForgotPasswordResponseIsUniform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "known@example.com", true, true)

	known := f.auth.ForgotPassword(ctx, "known@example.com")
	unknown := f.auth.ForgotPassword(ctx, "unknown@example.com")
	invalid := f.auth.ForgotPassword(ctx, "nope")
	assert.Equal(t, MsgForgotPassword, known)
	assert.Equal(t, known, unknown)
	assert.Equal(t, known, invalid)
	assert.Len(t, f.mail.reset, 1)

	f.mail.failWith = assert.AnError
	assert.Equal(t, known, f.auth.ForgotPassword(ctx, "known@example.com"))
}

func TestResetPasswordExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "reset@example.com", true, true)
	issued := f.clock.Now()

	f.auth.ForgotPassword(ctx, "reset@example.com")
	token := f.mail.lastReset().token

	// one second past expiry fails
	f.clock.Set(issued.Add(time.Hour + time.Second))
	err := f.auth.ResetPassword(ctx, ResetPasswordInput{Email: "reset@example.com", Token: token, Password: "NewPass123", ConfirmPassword: "NewPass123"})
	requireKind(t, err, KindValidation)

	// one second before expiry succeeds
	f.clock.Set(issued.Add(time.Hour - time.Second))
	err = f.auth.ResetPassword(ctx, ResetPasswordInput{Email: "reset@example.com", Token: token, Password: "NewPass123", ConfirmPassword: "NewPass123"})
	require.NoError(t, err)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "NewPass123"))
	assert.Empty(t, stored.ResetHash)
	assert.Nil(t, stored.ResetExp)

	// single use
	err = f.auth.ResetPassword(ctx, ResetPasswordInput{Email: "reset@example.com", Token: token, Password: "Other1234", ConfirmPassword: "Other1234"})
	requireKind(t, err, KindValidation)
}

func TestResetPasswordEndsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "sess@example.com", true, true)
	login, err := f.auth.Login(ctx, "sess@example.com", testPassword)
	require.NoError(t, err)

	f.auth.ForgotPassword(ctx, "sess@example.com")
	require.NoError(t, f.auth.ResetPassword(ctx, ResetPasswordInput{
		Email: "sess@example.com", Token: f.mail.lastReset().token, Password: "NewPass123", ConfirmPassword: "NewPass123",
	}))
	requireKind(t, errOf(f.auth.Refresh(ctx, login.RefreshToken)), KindForbidden)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.auth.Register(ctx, RegisterInput{Name: "Ver Ify", Email: "verify@example.com", Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
	token := f.mail.lastVerification().token

	requireKind(t, f.auth.VerifyEmail(ctx, "verify@example.com", "deadbeef"), KindValidation)
	requireKind(t, f.auth.VerifyEmail(ctx, "ghost@example.com", token), KindNotFound)
	require.NoError(t, f.auth.VerifyEmail(ctx, "verify@example.com", token))

	u, err := f.users.GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, u.IsEmailVerified)
	assert.Empty(t, u.VerificationHash)

	_, err = f.auth.Login(ctx, "verify@example.com", testPassword)
	require.NoError(t, err)

	requireKind(t, f.auth.ResendVerification(ctx, u.ID), KindValidation)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, RegisterInput{Name: "Late", Email: "late@example.com", Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
	token := f.mail.lastVerification().token

	f.clock.Set(f.clock.Now().Add(49 * time.Hour))
	se := requireKind(t, f.auth.VerifyEmail(ctx, "late@example.com", token), KindValidation)
	assert.Contains(t, se.Message, "expired")
}

func TestChangePasswordAndEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "change@example.com", true, true)
	f.seedUser(t, "other@example.com", true, true)

	err := f.auth.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: "Wrong1234", NewPassword: "Fresh1234", ConfirmPassword: "Fresh1234"})
	requireKind(t, err, KindAuth)
	err = f.auth.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: testPassword, NewPassword: "weak", ConfirmPassword: "weak"})
	requireKind(t, err, KindValidation)
	require.NoError(t, f.auth.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: testPassword, NewPassword: "Fresh1234", ConfirmPassword: "Fresh1234"}))

	_, err = f.auth.ChangeEmail(ctx, u.ID, "other@example.com", "Fresh1234")
	se := requireKind(t, err, KindConflict)
	assert.Equal(t, "Email already in use", se.Message)

	pub, err := f.auth.ChangeEmail(ctx, u.ID, "New@Example.com", "Fresh1234")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", pub.Email)
	assert.False(t, pub.IsEmailVerified)
	assert.Equal(t, "new@example.com", f.mail.lastVerification().to)
}

func TestDeleteAccountNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "bye@example.com", true, true)

	requireKind(t, f.auth.DeleteAccount(ctx, u.ID, testPassword, "delete"), KindValidation)
	requireKind(t, f.auth.DeleteAccount(ctx, u.ID, "Wrong1234", "DELETE"), KindAuth)
	require.NoError(t, f.auth.DeleteAccount(ctx, u.ID, testPassword, "DELETE"))

	_, err := f.users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProfileUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "me@example.com", true, true)

	_, err := f.auth.UpdateProfile(ctx, u.ID, "x")
	requireKind(t, err, KindValidation)
	pub, err := f.auth.UpdateProfile(ctx, u.ID, "  New Name ")
	require.NoError(t, err)
	assert.Equal(t, "New Name", pub.Name)

	_, err = f.auth.Profile(ctx, "recMissing")
	requireKind(t, err, KindNotFound)
}
