package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

type tokenValidator interface {
	Validate(token string) (*domain.TokenClaims, error)
}

// RevocationRegistry is a denylist of tokens invalidated before their natural
// expiry. Entries live exactly as long as the token would have, so the store
// never needs sweeping.
type RevocationRegistry struct {
	store  ports.RevocationStore
	tokens tokenValidator
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

// NewRevocationRegistry namespaces every key under prefix.
func NewRevocationRegistry(store ports.RevocationStore, tokens tokenValidator, prefix string, log zerolog.Logger) *RevocationRegistry {
	return &RevocationRegistry{
		store:  store,
		tokens: tokens,
		prefix: prefix,
		log:    log.With().Str("component", "revocation").Logger(),
		now:    time.Now,
	}
}

// Revoke denylists token for the rest of its lifetime. A token that is already
// invalid or expired is logged and ignored.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string) error {
	claims, err := r.tokens.Validate(token)
	if err != nil {
		r.log.Warn().Msg("revocation skipped: token already invalid")
		return nil
	}
	ttl := claims.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		r.log.Debug().Str("subject", claims.Subject).Msg("revocation skipped: token already expired")
		return nil
	}
	if err := r.store.Put(ctx, r.key(token), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	r.log.Info().
		Str("subject", claims.Subject).
		Str("type", string(claims.Type)).
		Dur("ttl", ttl).
		Msg("token revoked")
	return nil
}

// IsRevoked reports whether token has been denylisted.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.key(token))
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return ok, nil
}

// key hashes the token so raw bearer tokens never sit in the store.
func (r *RevocationRegistry) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}
