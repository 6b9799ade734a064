package domain

// NotificationKind selects the email template the mailer renders.
type NotificationKind string

const (
	NotifyEmailVerification NotificationKind = "email_verification"
	NotifyPasswordReset     NotificationKind = "password_reset"
	NotifyWelcome           NotificationKind = "welcome"
)

// Notification is an outbound email request. Delivery is best-effort.
type Notification struct {
	Kind      NotificationKind
	To        string
	FirstName string
	Token     string
}
