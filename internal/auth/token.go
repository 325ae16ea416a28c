package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTTL is the fixed validity window of a session token.
	TokenTTL = 24 * time.Hour
	// DefaultTokenSecret signs tokens when no secret is configured. It is public
	// knowledge; deployments must set their own.
	DefaultTokenSecret = "fallback_secret"

	tokenIssuer = "simantu"
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the payload of a session token.
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 session tokens.
// There is no revocation: a token stays valid until it expires.
type TokenService struct {
	secret   []byte
	fallback bool
	now      func() time.Time
}

type TokenOption func(*TokenService)

// WithTokenClock overrides time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService builds a token service. A blank secret selects DefaultTokenSecret.
func NewTokenService(secret string, opts ...TokenOption) *TokenService {
	s := &TokenService{now: time.Now}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		secret = DefaultTokenSecret
		s.fallback = true
	}
	s.secret = []byte(secret)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsesFallbackSecret reports whether tokens are signed with DefaultTokenSecret.
func (s *TokenService) UsesFallbackSecret() bool {
	return s.fallback
}

// Issue signs a token for the account. iat is second-aligned, as JWT numeric dates
// are, and the token verifies up to and including iat+TokenTTL, the returned expiry.
func (s *TokenService) Issue(accountID, email string) (string, time.Time, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", time.Time{}, errors.New("account id is required")
	}
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(TokenTTL)
	claims := TokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and validity window and returns the account id.
func (s *TokenService) Verify(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse verifies the token and returns its claims.
func (s *TokenService) Parse(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		// jwt treats exp as exclusive; the iat check below owns the boundary.
		jwt.WithLeeway(time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	// exp is signed, but the window is fixed regardless of what exp says.
	if s.now().After(claims.IssuedAt.Add(TokenTTL)) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
