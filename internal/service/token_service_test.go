package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceIssueOverwritesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "tok@example.com", true, true)

	first, err := f.tokens.IssuePasswordReset(ctx, u.ID)
	require.NoError(t, err)
	second, err := f.tokens.IssuePasswordReset(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)

	assert.ErrorIs(t, f.tokens.VerifyPasswordReset(ctx, u.ID, first), ErrInvalidToken)
	assert.NoError(t, f.tokens.VerifyPasswordReset(ctx, u.ID, second))
}

func TestTokenServiceRefreshExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "exp@example.com", true, true)

	raw, exp, err := f.tokens.IssueRefresh(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), exp)

	f.clock.Set(exp.Add(-time.Second))
	assert.NoError(t, f.tokens.VerifyRefresh(ctx, u.ID, raw))
	f.clock.Set(exp)
	assert.ErrorIs(t, f.tokens.VerifyRefresh(ctx, u.ID, raw), ErrExpiredToken)

	require.NoError(t, f.tokens.ClearRefresh(ctx, u.ID))
	assert.ErrorIs(t, f.tokens.VerifyRefresh(ctx, u.ID, raw), ErrInvalidToken)
	assert.ErrorIs(t, f.tokens.VerifyRefresh(ctx, u.ID, ""), ErrInvalidToken)
}
