// Package auth issues and validates the bearer tokens that carry a
// requester's identity. It proves who is calling, not what they may do.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

// UserLookup resolves the user a token is issued for.
type UserLookup interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
}

type Service interface {
	IssueToken(userID uuid.UUID, role string) (string, time.Time, error)
	TokenForEmail(ctx context.Context, email string) (string, time.Time, *models.User, error)
	ValidateToken(token string) (uuid.UUID, string, error)
}

type service struct {
	users  UserLookup
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserLookup, secret string, ttl time.Duration) *service {
	return &service{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) IssueToken(userID uuid.UUID, role string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// TokenForEmail issues a token for an existing user. An unknown email is
// NotFound.
func (s *service) TokenForEmail(ctx context.Context, email string) (string, time.Time, *models.User, error) {
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	tok, exp, err := s.IssueToken(u.ID, u.Role)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return tok, exp, u, nil
}

// ValidateToken returns the subject user id and role claim. Any failure is
// Unauthenticated.
func (s *service) ValidateToken(token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", apperr.Unauthenticated("token expired")
		}
		return uuid.Nil, "", apperr.Unauthenticated("invalid token")
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", apperr.Unauthenticated("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", apperr.Unauthenticated("invalid token subject")
	}
	return id, c.Role, nil
}
