package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
)

const (
	defaultMaxFailedAttempts = 5
	defaultLockDuration      = 30 * time.Minute
)

type attemptStore interface {
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	LockUntil(ctx context.Context, id string, until time.Time) error
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
}

// LockoutPolicy tracks failed password checks per identity. An identity is
// locked iff AccountLockedUntil is in the future; there is no stored state
// besides that timestamp and the counter.
//
// Reaching the threshold locks the account but leaves the counter as it is;
// only a successful login resets it.
type LockoutPolicy struct {
	store       attemptStore
	maxAttempts int
	window      time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewLockoutPolicy(store attemptStore, maxAttempts int, window time.Duration, log zerolog.Logger) *LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxFailedAttempts
	}
	if window <= 0 {
		window = defaultLockDuration
	}
	return &LockoutPolicy{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		log:         log.With().Str("component", "lockout").Logger(),
		now:         time.Now,
	}
}

// IsLocked reports whether identity is inside its lock window.
func (p *LockoutPolicy) IsLocked(identity *domain.Identity) bool {
	return identity.IsLocked(p.now())
}

// RegisterFailure counts one failed password check and opens the lock window
// when the threshold is reached. It reports whether the identity is now locked.
func (p *LockoutPolicy) RegisterFailure(ctx context.Context, identity *domain.Identity) (bool, error) {
	attempts, err := p.store.IncrementFailedLogins(ctx, identity.ID)
	if err != nil {
		return false, fmt.Errorf("register failed login: %w", err)
	}
	identity.FailedLoginAttempts = attempts
	if attempts < p.maxAttempts {
		return false, nil
	}

	until := p.now().UTC().Add(p.window)
	if err := p.store.LockUntil(ctx, identity.ID, until); err != nil {
		return false, fmt.Errorf("lock account: %w", err)
	}
	identity.AccountLockedUntil = &until
	p.log.Warn().
		Str("username", identity.Username).
		Int("attempts", attempts).
		Time("locked_until", until).
		Msg("account locked after repeated failed logins")
	return true, nil
}

// RegisterSuccess resets the counter and stamps the login time.
func (p *LockoutPolicy) RegisterSuccess(ctx context.Context, identity *domain.Identity) error {
	now := p.now().UTC()
	if err := p.store.RecordSuccessfulLogin(ctx, identity.ID, now); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	identity.FailedLoginAttempts = 0
	identity.AccountLockedUntil = nil
	identity.LastLoginAt = &now
	return nil
}
