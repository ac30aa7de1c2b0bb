package user

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	// covers both duplicate email and duplicate username; callers get one
	// conflict error rather than a hint about which field collided
	ErrAlreadyExists = errors.New("email or username already registered")
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FullName     *string   `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	IsActive     bool      `json:"is_active"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Username string  `json:"username" binding:"required,min=3,max=100"`
	FullName *string `json:"full_name" binding:"omitempty,max=255"`
	Password string  `json:"password" binding:"required,min=8,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,100}$`)

// ValidUsername accepts alphanumerics plus underscore and hyphen only.
func ValidUsername(username string) bool {
	return usernameRE.MatchString(username)
}
