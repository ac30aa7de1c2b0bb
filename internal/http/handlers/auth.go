package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmwangi/taskhub/internal/cache"
	"github.com/dmwangi/taskhub/internal/domain/job"
	"github.com/dmwangi/taskhub/internal/domain/user"
	"github.com/dmwangi/taskhub/internal/http/middlewares"
	"github.com/dmwangi/taskhub/internal/jobs"
	"github.com/dmwangi/taskhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersRepository interface {
	Create(ctx context.Context, email, username string, fullName *string, passwordHash string, roleID int64) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type RolesRepository interface {
	EnsureRole(ctx context.Context, name, description string) (user.Role, error)
}

type JobsEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error)
}

type TokenIssuer interface {
	IssueToken(userID int64, email, role string) (string, error)
}

type AuthHandler struct {
	users     UsersRepository
	roles     RolesRepository
	jobs      JobsEnqueuer
	tokens    TokenIssuer
	roleCache *cache.Cache
	log       *slog.Logger
}

func NewAuthHandler(users UsersRepository, roles RolesRepository, jobsRepo JobsEnqueuer, tokens TokenIssuer, roleCache *cache.Cache, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		users:     users,
		roles:     roles,
		jobs:      jobsRepo,
		tokens:    tokens,
		roleCache: roleCache,
		log:       log,
	}
}

const roleCacheKey = "role:" + user.RoleUser

// defaultRole resolves the "user" role, lazily creating it on first use.
func (h *AuthHandler) defaultRole(ctx context.Context) (user.Role, error) {
	if h.roleCache != nil {
		if v, ok := h.roleCache.Get(roleCacheKey); ok {
			if role, ok := v.(user.Role); ok {
				return role, nil
			}
		}
	}

	role, err := h.roles.EnsureRole(ctx, user.RoleUser, "Regular user")
	if err != nil {
		return user.Role{}, err
	}

	if h.roleCache != nil {
		h.roleCache.Set(roleCacheKey, role)
	}

	return role, nil
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if !BindJSON(c, &req) {
		return
	}

	if !user.ValidUsername(req.Username) {
		RespondBadRequest(c, "username may only contain letters, digits, underscore and hyphen", nil)
		return
	}

	ctx := c.Request.Context()

	role, err := h.defaultRole(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "default role lookup failed", "err", err)
		RespondInternal(c, "could not complete registration")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		h.log.ErrorContext(ctx, "password hash failed", "err", err)
		RespondInternal(c, "could not complete registration")
		return
	}

	u, err := h.users.Create(ctx, req.Email, req.Username, req.FullName, hash, role.ID)
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			RespondConflict(c, "already_registered", "email or username already registered")
			return
		}

		h.log.ErrorContext(ctx, "user create failed", "err", err)
		RespondInternal(c, "could not complete registration")
		return
	}

	h.enqueueWelcome(ctx, u)

	c.JSON(http.StatusCreated, u)
}

// enqueueWelcome schedules the welcome notification. Failures are logged and
// swallowed; registration already committed and must not be rolled back over
// a side effect.
func (h *AuthHandler) enqueueWelcome(ctx context.Context, u user.User) {
	if h.jobs == nil {
		return
	}

	payload, err := jobs.UserWelcomePayload{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
	}.JSON()
	if err != nil {
		h.log.ErrorContext(ctx, "welcome payload encode failed", "user_id", u.ID, "err", err)
		return
	}

	key := fmt.Sprintf("welcome:user:%d", u.ID)

	enqueueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := h.jobs.Create(enqueueCtx, job.CreateRequest{
		Type:           jobs.TypeUserWelcome,
		Payload:        payload,
		IdempotencyKey: &key,
	}); err != nil {
		// duplicate key means a previous attempt already queued it
		if existing, lookupErr := h.jobs.GetByIdempotencyKey(enqueueCtx, key); lookupErr == nil {
			h.log.InfoContext(ctx, "welcome job already queued", "user_id", u.ID, "job_id", existing.ID)
			return
		}

		h.log.ErrorContext(ctx, "welcome job enqueue failed", "user_id", u.ID, "err", err)
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	u, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// same response as a wrong password; never reveal which one failed
			RespondUnauthorized(c, "invalid_credentials", "Incorrect email or password")
			return
		}

		h.log.ErrorContext(ctx, "login lookup failed", "err", err)
		RespondInternal(c, "could not complete login")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(c, "invalid_credentials", "Incorrect email or password")
		return
	}

	if !u.IsActive {
		RespondForbidden(c, "account_inactive", "Account is inactive")
		return
	}

	token, err := h.tokens.IssueToken(u.ID, u.Email, u.Role.Name)
	if err != nil {
		h.log.ErrorContext(ctx, "token issue failed", "user_id", u.ID, "err", err)
		RespondInternal(c, "could not complete login")
		return
	}

	c.JSON(http.StatusOK, user.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u,
	})
}

// Me returns the account behind the presented token.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(c)
	if !ok {
		RespondUnauthorized(c, "unauthorized", "Missing or invalid authorization header")
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// token outlived the account
			RespondNotFound(c, "user not found")
			return
		}

		h.log.ErrorContext(c.Request.Context(), "me lookup failed", "user_id", userID, "err", err)
		RespondInternal(c, "could not load account")
		return
	}

	c.JSON(http.StatusOK, u)
}
