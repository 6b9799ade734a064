package ports

import (
	"context"

	"github.com/medivex/identity-service/internal/core/domain"
)

// Notifier accepts outbound notifications. Callers treat errors as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Mailer delivers a single notification.
type Mailer interface {
	Send(ctx context.Context, n domain.Notification) error
}
