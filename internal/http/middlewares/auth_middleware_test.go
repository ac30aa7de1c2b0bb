package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmwangi/taskhub/internal/auth"
	"github.com/dmwangi/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func gateRouter(v middlewares.TokenVerifier) *gin.Engine {
	r := gin.New()

	gate := middlewares.NewIdentityGate(v, []string{"/api/v1/auth/register", "/api/v1/auth/login", "/docs"})
	r.Use(gate.Handler())

	r.POST("/api/v1/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"public": true})
	})

	r.GET("/api/v1/tasks", func(c *gin.Context) {
		id, _ := middlewares.UserIDFromContext(c)
		email, _ := middlewares.EmailFromContext(c)
		role, _ := middlewares.RoleFromContext(c)

		c.JSON(http.StatusOK, gin.H{"user_id": id, "email": email, "role": role})
	})

	return r
}

func TestIdentityGate(t *testing.T) {
	tests := []struct {
		name          string
		verifier      *fakeVerifier
		method        string
		path          string
		authHeader    string
		wantStatus    int
		wantChallenge bool
	}{
		{
			name:       "public_path_passes_without_token",
			verifier:   &fakeVerifier{err: errors.New("must not be called")},
			method:     http.MethodPost,
			path:       "/api/v1/auth/login",
			wantStatus: http.StatusOK,
		},
		{
			name:          "missing_header",
			verifier:      &fakeVerifier{},
			method:        http.MethodGet,
			path:          "/api/v1/tasks",
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: true,
		},
		{
			name:          "wrong_scheme",
			verifier:      &fakeVerifier{},
			method:        http.MethodGet,
			path:          "/api/v1/tasks",
			authHeader:    "Basic dXNlcjpwYXNz",
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: true,
		},
		{
			name:          "empty_bearer",
			verifier:      &fakeVerifier{},
			method:        http.MethodGet,
			path:          "/api/v1/tasks",
			authHeader:    "Bearer ",
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: true,
		},
		{
			name:          "invalid_token",
			verifier:      &fakeVerifier{err: auth.ErrInvalidToken},
			method:        http.MethodGet,
			path:          "/api/v1/tasks",
			authHeader:    "Bearer bad-token",
			wantStatus:    http.StatusUnauthorized,
			wantChallenge: true,
		},
		{
			name:       "valid_token",
			verifier:   &fakeVerifier{claims: &auth.Claims{UserID: 5, Email: "a@b.com", Role: "user"}},
			method:     http.MethodGet,
			path:       "/api/v1/tasks",
			authHeader: "Bearer good-token",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := gateRouter(tt.verifier)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			challenge := w.Header().Get("WWW-Authenticate")

			if tt.wantChallenge && challenge != "Bearer" {
				t.Fatalf("expected WWW-Authenticate: Bearer, got %q", challenge)
			}

			if !tt.wantChallenge && challenge != "" {
				t.Fatalf("unexpected challenge header %q", challenge)
			}
		})
	}
}

func TestIdentityGate_AttachesClaims(t *testing.T) {
	v := &fakeVerifier{claims: &auth.Claims{UserID: 9, Email: "nine@example.com", Role: "admin"}}

	r := gateRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	want := `"email":"nine@example.com"`

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), want) {
		t.Fatalf("identity not propagated, status=%d body=%s", w.Code, w.Body.String())
	}
}
