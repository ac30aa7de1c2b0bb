package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// sent once after a successful registration
	TypeUserWelcome = "user.welcome"
)

var (
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidJobPayload = errors.New("invalid job payload")
)

type UserWelcomePayload struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (p UserWelcomePayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return json.RawMessage(b), nil
}

// DecodeUserWelcome unmarshals and validates a welcome payload.
func DecodeUserWelcome(raw json.RawMessage) (UserWelcomePayload, error) {
	var p UserWelcomePayload

	if len(raw) == 0 {
		return p, ErrInvalidJobPayload
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	if p.UserID == 0 || strings.TrimSpace(p.Email) == "" {
		return p, ErrInvalidJobPayload
	}

	return p, nil
}

func IsValidType(t string) bool {
	switch t {
	case TypeUserWelcome:
		return true
	default:
		return false
	}
}
