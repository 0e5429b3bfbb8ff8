package repository

import (
	"context"
	"time"

	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

// Field names of the Users table.
const (
	fUserName          = "Name"
	fUserEmail         = "Email"
	fUserPassword      = "Password"
	fUserRole          = "Role"
	fUserActive        = "IsActive"
	fUserVerified      = "IsEmailVerified"
	fUserVerifyToken   = "EmailVerificationToken"
	fUserVerifyExpiry  = "EmailVerificationTokenExpiry"
	fUserResetToken    = "ResetToken"
	fUserResetExpiry   = "ResetTokenExpiry"
	fUserRefreshToken  = "RefreshToken"
	fUserRefreshExpiry = "RefreshTokenExpiry"
)

// UserRepo is the credential store adapter.
type UserRepo struct {
	store recordstore.Store
	table string
}

func NewUserRepo(store recordstore.Store, table string) *UserRepo {
	return &UserRepo{store: store, table: table}
}

// TokenPair is a stored secret hash and its expiry.  The two columns are
// always written together: a zero TokenPair clears both.
type TokenPair struct {
	Hash string
	Exp  *time.Time
}

// Cleared returns the pair that nulls both columns.
func Cleared() *TokenPair { return &TokenPair{} }

// UserUpdate is a partial update.  Nil fields are left untouched.
type UserUpdate struct {
	Name            *string
	Email           *string
	PasswordHash    *string
	Role            *string
	IsActive        *bool
	IsEmailVerified *bool
	Verification    *TokenPair
	Reset           *TokenPair
	Refresh         *TokenPair
}

// GetByEmail looks the user up by address, case-insensitively.  The caller
// is expected to pass a normalized address.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{
		Filter:     recordstore.EqFold(fUserEmail, email),
		MaxRecords: 1,
	})
	if err != nil {
		return model.User{}, mapErr(err)
	}
	if len(recs) == 0 {
		return model.User{}, ErrNotFound
	}
	return decodeUser(recs[0]), nil
}

// GetByID fetches a user by record id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	rec, err := r.store.Get(ctx, r.table, id)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return decodeUser(rec), nil
}

// List returns every user.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	recs, err := r.store.List(ctx, r.table, recordstore.ListOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeUser(rec))
	}
	return out, nil
}

// Create inserts a user and returns it with the store-assigned id.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	fields := recordstore.Fields{
		fUserName:     u.Name,
		fUserEmail:    u.Email,
		fUserPassword: u.PasswordHash,
		fUserRole:     u.Role,
		fUserActive:   u.IsActive,
		fUserVerified: u.IsEmailVerified,
	}
	putPair(fields, fUserVerifyToken, fUserVerifyExpiry, &TokenPair{Hash: u.VerificationHash, Exp: u.VerificationExp})
	rec, err := r.store.Create(ctx, r.table, fields)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return decodeUser(rec), nil
}

// Update applies a partial update and returns the stored result.
func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) (model.User, error) {
	fields := recordstore.Fields{}
	if upd.Name != nil {
		fields[fUserName] = *upd.Name
	}
	if upd.Email != nil {
		fields[fUserEmail] = *upd.Email
	}
	if upd.PasswordHash != nil {
		fields[fUserPassword] = *upd.PasswordHash
	}
	if upd.Role != nil {
		fields[fUserRole] = *upd.Role
	}
	if upd.IsActive != nil {
		fields[fUserActive] = *upd.IsActive
	}
	if upd.IsEmailVerified != nil {
		fields[fUserVerified] = *upd.IsEmailVerified
	}
	putPair(fields, fUserVerifyToken, fUserVerifyExpiry, upd.Verification)
	putPair(fields, fUserResetToken, fUserResetExpiry, upd.Reset)
	putPair(fields, fUserRefreshToken, fUserRefreshExpiry, upd.Refresh)

	rec, err := r.store.Update(ctx, r.table, id, fields)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return decodeUser(rec), nil
}

// Delete removes the user record.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return mapErr(r.store.Delete(ctx, r.table, id))
}

// putPair writes both columns of a token pair.  A pair with an empty hash
// or without an expiry is written as cleared so the columns never diverge.
func putPair(fields recordstore.Fields, hashKey, expKey string, p *TokenPair) {
	if p == nil {
		return
	}
	if p.Hash == "" || p.Exp == nil {
		fields[hashKey] = nil
		fields[expKey] = nil
		return
	}
	fields[hashKey] = p.Hash
	fields[expKey] = formatTime(*p.Exp)
}

func decodeUser(rec recordstore.Record) model.User {
	f := rec.Fields
	u := model.User{
		ID:              rec.ID,
		Name:            f.String(fUserName),
		Email:           f.String(fUserEmail),
		PasswordHash:    f.String(fUserPassword),
		Role:            f.String(fUserRole),
		IsActive:        f.Bool(fUserActive),
		IsEmailVerified: f.Bool(fUserVerified),
		CreatedAt:       rec.CreatedTime,
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.VerificationHash, u.VerificationExp = readPair(f, fUserVerifyToken, fUserVerifyExpiry)
	u.ResetHash, u.ResetExp = readPair(f, fUserResetToken, fUserResetExpiry)
	u.RefreshHash, u.RefreshExp = readPair(f, fUserRefreshToken, fUserRefreshExpiry)
	return u
}

// readPair treats a half-written pair as absent.  Verification tokens
// written before expiries were tracked have no expiry and are kept.
func readPair(f recordstore.Fields, hashKey, expKey string) (string, *time.Time) {
	hash := f.String(hashKey)
	exp := f.Time(expKey)
	if hash == "" {
		return "", nil
	}
	if exp == nil && hashKey != fUserVerifyToken {
		return "", nil
	}
	return hash, exp
}
