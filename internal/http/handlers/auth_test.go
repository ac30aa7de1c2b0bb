package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmwangi/taskhub/internal/auth"
	"github.com/dmwangi/taskhub/internal/domain/job"
	"github.com/dmwangi/taskhub/internal/domain/user"
	"github.com/dmwangi/taskhub/internal/http/middlewares"
	"github.com/dmwangi/taskhub/internal/security"
	"github.com/gin-gonic/gin"
)

type fakeUsers struct {
	createFn     func(ctx context.Context, email, username string, fullName *string, hash string, roleID int64) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id int64) (user.User, error)
}

func (f *fakeUsers) Create(ctx context.Context, email, username string, fullName *string, hash string, roleID int64) (user.User, error) {
	return f.createFn(ctx, email, username, fullName, hash, roleID)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (user.User, error) {
	return f.getByIDFn(ctx, id)
}

type fakeRoles struct {
	ensureFn func(ctx context.Context, name, description string) (user.Role, error)
}

func (f *fakeRoles) EnsureRole(ctx context.Context, name, description string) (user.Role, error) {
	return f.ensureFn(ctx, name, description)
}

type fakeJobs struct {
	created  []job.CreateRequest
	createFn func(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

func (f *fakeJobs) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	f.created = append(f.created, req)
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return job.New(req), nil
}

func (f *fakeJobs) GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	return job.Job{}, job.ErrJobNotFound
}

type fakeIssuer struct {
	issueFn func(userID int64, email, role string) (string, error)
}

func (f *fakeIssuer) IssueToken(userID int64, email, role string) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(userID, email, role)
	}
	return "test-token", nil
}

type staticVerifier struct {
	claims *auth.Claims
	err    error
}

func (v *staticVerifier) VerifyToken(string) (*auth.Claims, error) {
	return v.claims, v.err
}

func testUser(id int64) user.User {
	now := time.Now().UTC()
	return user.User{
		ID:           id,
		Email:        "ada@example.com",
		Username:     "ada",
		PasswordHash: "x",
		IsActive:     true,
		Role:         user.Role{ID: 1, Name: user.RoleUser, CreatedAt: now},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func authRouter(h *AuthHandler, verifier middlewares.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	gate := middlewares.NewIdentityGate(verifier, []string{"/api/v1/auth/register", "/api/v1/auth/login"})
	r.Use(gate.Handler())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)
	v1.GET("/auth/me", h.Me)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	roles := &fakeRoles{
		ensureFn: func(_ context.Context, name, _ string) (user.Role, error) {
			return user.Role{ID: 1, Name: name}, nil
		},
	}

	t.Run("created", func(t *testing.T) {
		jobsRepo := &fakeJobs{}
		users := &fakeUsers{
			createFn: func(_ context.Context, email, username string, _ *string, hash string, roleID int64) (user.User, error) {
				if hash == "" || hash == "secret-pass" {
					t.Fatalf("password was not hashed before storage")
				}
				if roleID != 1 {
					t.Fatalf("roleID = %d, want 1", roleID)
				}
				u := testUser(42)
				u.Email = email
				u.Username = username
				return u, nil
			},
		}

		h := NewAuthHandler(users, roles, jobsRepo, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{})

		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
			`{"email":"ada@example.com","username":"ada","password":"secret-pass"}`, "")

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
		}

		if strings.Contains(w.Body.String(), "password") {
			t.Fatalf("response leaks password material: %s", w.Body.String())
		}

		if len(jobsRepo.created) != 1 {
			t.Fatalf("welcome jobs enqueued = %d, want 1", len(jobsRepo.created))
		}
		if jobsRepo.created[0].IdempotencyKey == nil || *jobsRepo.created[0].IdempotencyKey != "welcome:user:42" {
			t.Fatalf("unexpected idempotency key %v", jobsRepo.created[0].IdempotencyKey)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		users := &fakeUsers{
			createFn: func(context.Context, string, string, *string, string, int64) (user.User, error) {
				return user.User{}, user.ErrAlreadyExists
			},
		}

		h := NewAuthHandler(users, roles, &fakeJobs{}, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{})

		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
			`{"email":"ada@example.com","username":"ada","password":"secret-pass"}`, "")

		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
		if !strings.Contains(w.Body.String(), "already_registered") {
			t.Fatalf("body = %s, want already_registered code", w.Body.String())
		}
	})

	t.Run("enqueue failure does not fail registration", func(t *testing.T) {
		jobsRepo := &fakeJobs{
			createFn: func(context.Context, job.CreateRequest) (job.Job, error) {
				return job.Job{}, errors.New("queue down")
			},
		}
		users := &fakeUsers{
			createFn: func(context.Context, string, string, *string, string, int64) (user.User, error) {
				return testUser(7), nil
			},
		}

		h := NewAuthHandler(users, roles, jobsRepo, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{})

		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
			`{"email":"ada@example.com","username":"ada","password":"secret-pass"}`, "")

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
	})

	t.Run("rejected bodies", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"missing password", `{"email":"ada@example.com","username":"ada"}`},
			{"short password", `{"email":"ada@example.com","username":"ada","password":"short"}`},
			{"bad email", `{"email":"not-an-email","username":"ada","password":"secret-pass"}`},
			{"username with spaces", `{"email":"ada@example.com","username":"ada lovelace","password":"secret-pass"}`},
			{"not json", `title=x`},
		}

		users := &fakeUsers{
			createFn: func(context.Context, string, string, *string, string, int64) (user.User, error) {
				t.Fatal("Create must not be called for an invalid body")
				return user.User{}, nil
			},
		}
		h := NewAuthHandler(users, roles, &fakeJobs{}, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{})

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", tc.body, "")
				if w.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400", w.Code)
				}
			})
		}
	})
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	stored := testUser(9)
	stored.PasswordHash = hash

	newHandler := func(u user.User, lookupErr error) *AuthHandler {
		users := &fakeUsers{
			getByEmailFn: func(context.Context, string) (user.User, error) {
				return u, lookupErr
			},
		}
		return NewAuthHandler(users, &fakeRoles{}, nil, &fakeIssuer{}, nil, nil)
	}

	t.Run("success", func(t *testing.T) {
		r := authRouter(newHandler(stored, nil), &staticVerifier{})

		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
			`{"email":"ada@example.com","password":"correct-horse"}`, "")

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
		}

		var resp user.TokenResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.AccessToken != "test-token" || resp.TokenType != "bearer" {
			t.Fatalf("unexpected token response: %+v", resp)
		}
		if resp.User.ID != 9 {
			t.Fatalf("user id = %d, want 9", resp.User.ID)
		}
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		unknown := doJSON(t, authRouter(newHandler(user.User{}, user.ErrNotFound), &staticVerifier{}),
			http.MethodPost, "/api/v1/auth/login", `{"email":"who@example.com","password":"correct-horse"}`, "")
		wrongPw := doJSON(t, authRouter(newHandler(stored, nil), &staticVerifier{}),
			http.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"nope-nope-nope"}`, "")

		for _, w := range []*httptest.ResponseRecorder{unknown, wrongPw} {
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Fatalf("WWW-Authenticate = %q, want Bearer", got)
			}
		}

		if unknown.Body.String() != wrongPw.Body.String() {
			t.Fatalf("failure bodies differ:\n%s\n%s", unknown.Body.String(), wrongPw.Body.String())
		}
	})

	t.Run("inactive account", func(t *testing.T) {
		inactive := stored
		inactive.IsActive = false

		w := doJSON(t, authRouter(newHandler(inactive, nil), &staticVerifier{}),
			http.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"correct-horse"}`, "")

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
		if !strings.Contains(w.Body.String(), "account_inactive") {
			t.Fatalf("body = %s, want account_inactive code", w.Body.String())
		}
	})
}

func TestMe(t *testing.T) {
	claims := &auth.Claims{UserID: 9, Email: "ada@example.com", Role: user.RoleUser}

	t.Run("returns the token holder", func(t *testing.T) {
		users := &fakeUsers{
			getByIDFn: func(_ context.Context, id int64) (user.User, error) {
				if id != 9 {
					t.Fatalf("looked up id %d, want 9", id)
				}
				return testUser(9), nil
			},
		}

		h := NewAuthHandler(users, &fakeRoles{}, nil, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{claims: claims})

		w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", "sometoken")

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"ada@example.com"`) {
			t.Fatalf("body = %s, want user email", w.Body.String())
		}
	})

	t.Run("account deleted after issue", func(t *testing.T) {
		users := &fakeUsers{
			getByIDFn: func(context.Context, int64) (user.User, error) {
				return user.User{}, user.ErrNotFound
			},
		}

		h := NewAuthHandler(users, &fakeRoles{}, nil, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{claims: claims})

		w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", "sometoken")

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("no token", func(t *testing.T) {
		h := NewAuthHandler(&fakeUsers{}, &fakeRoles{}, nil, &fakeIssuer{}, nil, nil)
		r := authRouter(h, &staticVerifier{err: auth.ErrInvalidToken})

		w := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", "")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}
