package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dmwangi/taskhub/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerifyToken(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	raw, err := m.IssueToken(42, "alice@example.com", "user")

	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := m.VerifyToken(raw)

	if err != nil {
		t.Fatalf("VerifyToken rejected a fresh token: %v", err)
	}

	if claims.UserID != 42 || claims.Email != "alice@example.com" || claims.Role != "user" {
		t.Fatalf("claims came back changed: %+v", claims)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	// negative TTL is clamped by NewManager, so craft the expired token directly
	now := time.Now().UTC()

	claims := auth.Claims{
		UserID: 7,
		Email:  "old@example.com",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing expired token failed: %v", err)
	}

	m := auth.NewManager("test-secret", time.Hour)

	_, err = m.VerifyToken(raw)

	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	issuer := auth.NewManager("secret-one", time.Hour)
	verifier := auth.NewManager("secret-two", time.Hour)

	raw, err := issuer.IssueToken(1, "a@example.com", "user")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	_, err = verifier.VerifyToken(raw)

	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyToken_MalformedAndMissingClaims(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	tests := []struct {
		name string
		raw  func(t *testing.T) string
	}{
		{
			name: "garbage",
			raw: func(t *testing.T) string {
				return "not.a.token"
			},
		},
		{
			name: "missing_user_id",
			raw: func(t *testing.T) string {
				tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
					"email": "ghost@example.com",
					"role":  "user",
					"exp":   time.Now().Add(time.Hour).Unix(),
				})

				s, err := tok.SignedString([]byte("test-secret"))
				if err != nil {
					t.Fatalf("signing failed: %v", err)
				}
				return s
			},
		},
		{
			name: "alg_none_rejected",
			raw: func(t *testing.T) string {
				tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
					"user_id": 9,
					"exp":     time.Now().Add(time.Hour).Unix(),
				})
				s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("signing failed: %v", err)
				}
				return s
			},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyToken(tt.raw(t))

			if !errors.Is(err, auth.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
