package notifications

import "context"

type SendWelcomeInput struct {
	UserID   int64
	Email    string
	Username string
}

type Notifier interface {
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
}
