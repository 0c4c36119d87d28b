package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/postboard/apiserver/types"
)

// TokenType is reported alongside every issued access token.
const TokenType = "bearer"

// Claims is the payload of an access token. The identity claims are pointers
// so that a token missing any of them can be rejected.
type Claims struct {
	UserID      *int    `json:"user_id"`
	Username    *string `json:"username"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-signed access tokens.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService for one of HS256, HS384 or HS512.
func NewTokenService(secret, algorithm string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token carrying a snapshot of the user's identity and flags.
func (s *TokenService) Issue(user types.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:      &user.ID,
		Username:    &user.Username,
		IsActive:    &user.IsActive,
		IsSuperuser: &user.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secret)
}

// Parse verifies signature, algorithm and expiry and decodes the identity.
// Every failure is reported as ErrInvalidToken.
func (s *TokenService) Parse(tokenString string) (Identity, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID == nil || claims.Username == nil || claims.IsActive == nil || claims.IsSuperuser == nil {
		return Identity{}, ErrInvalidToken
	}
	if *claims.UserID < 1 || strings.TrimSpace(*claims.Username) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:          *claims.UserID,
		Username:    *claims.Username,
		IsActive:    *claims.IsActive,
		IsSuperuser: *claims.IsSuperuser,
	}, nil
}
