package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joblinker/backend/internal/apperr"
	"github.com/joblinker/backend/internal/models"
)

type stubUsers map[string]*models.User

func (s stubUsers) GetUser(_ context.Context, email string) (*models.User, error) {
	u, ok := s[email]
	if !ok {
		return nil, apperr.NotFound("user %s not found", email)
	}
	return u, nil
}

func newTestService(users stubUsers) *service {
	s := NewService(users, "test-secret", time.Hour)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestIssueAndValidate(t *testing.T) {
	s := newTestService(nil)
	id := uuid.New()

	tok, exp, err := s.IssueToken(id, models.RoleCreator)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if want := s.now().Add(time.Hour); !exp.Equal(want) {
		t.Errorf("expires at %v, want %v", exp, want)
	}
	gotID, role, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if gotID != id || role != models.RoleCreator {
		t.Errorf("got (%s, %s), want (%s, %s)", gotID, role, id, models.RoleCreator)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	s := newTestService(nil)
	tok, _, err := s.IssueToken(uuid.New(), models.RoleWorker)
	if err != nil {
		t.Fatal(err)
	}
	later := s.now().Add(2 * time.Hour)
	s.now = func() time.Time { return later }

	_, _, err = s.ValidateToken(tok)
	if !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if apperr.PublicMessage(err) != "token expired" {
		t.Errorf("message = %q", apperr.PublicMessage(err))
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	s := newTestService(nil)
	other := newTestService(nil)
	other.secret = []byte("another-secret")
	foreign, _, _ := other.IssueToken(uuid.New(), models.RoleWorker)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(s.now().Add(time.Hour)),
	}).SignedString(s.secret)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"wrong secret", foreign},
		{"alg none", none},
		{"non-uuid subject", badSubject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := s.ValidateToken(tc.token); !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Errorf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestTokenForEmail(t *testing.T) {
	u := &models.User{ID: uuid.New(), Email: "ana@example.com", Role: models.RoleWorker}
	s := newTestService(stubUsers{u.Email: u})

	tok, _, got, err := s.TokenForEmail(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("TokenForEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("user = %s, want %s", got.ID, u.ID)
	}
	if id, _, err := s.ValidateToken(tok); err != nil || id != u.ID {
		t.Errorf("token resolves to %s, %v", id, err)
	}

	if _, _, _, err := s.TokenForEmail(context.Background(), "nobody@example.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
