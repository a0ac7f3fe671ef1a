package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/user-account-service/internal/model"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of both tokens of a pair.  The subject is the user
// id; the role is copied from the user record at issue time.
type Claims struct {
	Role model.Role `json:"role"`
	Type string     `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	AccessToken    string    `json:"access_token"`
	AccessExpires  time.Time `json:"access_expires"`
	RefreshToken   string    `json:"refresh_token"`
	RefreshExpires time.Time `json:"refresh_expires"`
}

// TokenService issues and verifies HS256 token pairs.  It holds no state
// besides its secret and lifetimes, and never touches storage.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService builds a TokenService.  Rotating the secret invalidates
// every outstanding token.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token service: empty signing secret")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token service: token lifetimes must be positive")
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of s that reads the current time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// Issue signs a fresh access/refresh pair for u.
func (s *TokenService) Issue(u model.User) (TokenPair, error) {
	now := s.now().UTC()
	access, accessExp, err := s.sign(u, TypeAccess, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.sign(u, TypeRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

func (s *TokenService) sign(u model.User, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Role: u.Role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and payload shape of raw and returns its
// claims.  Failures are ErrTokenExpired, ErrTokenMalformed or ErrTokenInvalid.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrTokenMalformed
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.  A refresh token
// presented as a bearer credential is rejected.
func (s *TokenService) VerifyAccess(raw string) (*Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
