package ports

import (
	"context"
	"time"

	"github.com/medivex/identity-service/internal/core/domain"
)

// ListIdentitiesFilter carries the query parameters for listing identities.
type ListIdentitiesFilter struct {
	Search         string // optional: partial match on username, email, first or last name
	IncludeDeleted bool
	Page           int // 1-based
	Limit          int // capped at MaxPageLimit
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies the paging defaults and caps.
func (f ListIdentitiesFilter) Normalize() ListIdentitiesFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// IdentityRepository persists identity records. Lookups by username, email or
// token only see identities that are not soft-deleted; FindByID sees all.
//
// Every mutation of a single identity is a single atomic write so concurrent
// requests never lose updates.
type IdentityRepository interface {
	// Create inserts a new identity. Returns ErrDuplicateUsername or
	// ErrDuplicateEmail when a live identity already holds either value.
	Create(ctx context.Context, identity *domain.Identity) error
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByUsername(ctx context.Context, username string) (*domain.Identity, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByUsernameOrEmail(ctx context.Context, login string) (*domain.Identity, error)
	List(ctx context.Context, filter ListIdentitiesFilter) ([]*domain.Identity, int64, error)

	// UpdateProfile applies upd. When upd.Email is set and verificationToken
	// is non-empty the email is marked unverified and verificationToken
	// replaces the stored one.
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, verificationToken string) (*domain.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetStatus(ctx context.Context, id string, status domain.AccountStatus, deletedAt *time.Time) error
	AddRole(ctx context.Context, id, roleID string) error
	RemoveRole(ctx context.Context, id, roleID string) error

	// ConsumeEmailVerificationToken marks the owner verified and clears the
	// token in one write. Returns ErrIdentityNotFound when no live identity
	// holds token.
	ConsumeEmailVerificationToken(ctx context.Context, token string) (*domain.Identity, error)
	// SetPasswordResetToken overwrites any previous reset token.
	SetPasswordResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	// RedeemPasswordResetToken replaces the password hash and clears both
	// reset fields in one write, only if token matches and expires after now.
	// Returns ErrIdentityNotFound otherwise.
	RedeemPasswordResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*domain.Identity, error)

	// IncrementFailedLogins atomically adds one to the counter and returns the
	// new value.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	LockUntil(ctx context.Context, id string, until time.Time) error
	// RecordSuccessfulLogin resets the counter, clears the lock and stamps
	// the last login time.
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
}
