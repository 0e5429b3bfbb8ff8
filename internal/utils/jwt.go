package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing for stored single-use secrets
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidToken is returned when a signed token fails signature or shape
// checks.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired is returned for a well-signed token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Access tokens are presented in the Authorization header when
// calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// AccessClaims are the claims carried by an access token.  The JSON names
// are part of the public contract: {userId, email, role}.
type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims wrap the opaque refresh secret in a signed container.  The
// container is signed with a different secret than access tokens so that a
// leak of one key does not allow forging the other.
type RefreshClaims struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
	jwt.RegisteredClaims
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// expires ttl after now.
func NewAccessToken(secret, userID, email, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
	exp := now.UTC().Add(ttl)
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates signature and expiry and returns the claims.
func ParseAccessToken(secret, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parseHS256(secret, raw, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshWrapper signs the opaque refresh secret for transport to the
// client.  The wrapper never outlives the stored secret it carries.
func NewRefreshWrapper(secret, userID, opaque string, ttl time.Duration, now time.Time) (string, error) {
	claims := RefreshClaims{
		UserID: userID,
		Token:  opaque,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(now.UTC().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseRefreshWrapper validates the container and returns the user id and
// the opaque secret inside it.
func ParseRefreshWrapper(secret, raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parseHS256(secret, raw, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Token == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parseHS256(secret, raw string, claims jwt.Claims) error {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the SHA-256 hash of a single-use secret as a hex
// string.  Only the hash is persisted so a leaked user table cannot be
// replayed against the reset or refresh endpoints.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
