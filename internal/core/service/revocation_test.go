package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medivex/identity-service/internal/core/domain"
)

func issueAccess(t *testing.T, env *testEnv, username string) string {
	t.Helper()
	p := env.register(t, username, "pw")
	identity, _ := env.identities.FindByID(context.Background(), p.ID)
	token, err := env.tokens.Issue(context.Background(), identity, domain.TokenAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestRevocationRegistry_RevokeAndCheck(t *testing.T) {
	env := newTestEnv(t)
	token := issueAccess(t, env, "alice")
	ctx := context.Background()

	revoked, err := env.revocations.IsRevoked(ctx, token)
	if err != nil || revoked {
		t.Fatalf("fresh token reported revoked=%v err=%v", revoked, err)
	}

	if err := env.revocations.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if revoked, _ := env.revocations.IsRevoked(ctx, token); !revoked {
		t.Fatalf("expected token to be revoked")
	}

	// Revoking twice is harmless.
	if err := env.revocations.Revoke(ctx, token); err != nil {
		t.Fatalf("second Revoke returned error: %v", err)
	}
}

func TestRevocationRegistry_EntryLivesAsLongAsToken(t *testing.T) {
	env := newTestEnv(t)
	token := issueAccess(t, env, "bob")
	ctx := context.Background()

	env.clock.Advance(5 * time.Minute)
	if err := env.revocations.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if len(env.store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(env.store.entries))
	}
	for key, exp := range env.store.entries {
		if !strings.HasPrefix(key, "blacklist:") {
			t.Fatalf("key not namespaced: %s", key)
		}
		if strings.Contains(key, token) {
			t.Fatalf("raw token stored in key")
		}
		if want := env.clock.Now().Add(10 * time.Minute); !exp.Equal(want) {
			t.Fatalf("entry expires at %s, want %s", exp, want)
		}
	}

	env.clock.Advance(10*time.Minute + time.Second)
	if revoked, _ := env.revocations.IsRevoked(ctx, token); revoked {
		t.Fatalf("entry should have expired with the token")
	}
}

func TestRevocationRegistry_IgnoresInvalidAndExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.revocations.Revoke(ctx, "garbage"); err != nil {
		t.Fatalf("Revoke(garbage) returned error: %v", err)
	}

	token := issueAccess(t, env, "carol")
	env.clock.Advance(time.Hour)
	if err := env.revocations.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke(expired) returned error: %v", err)
	}
	if len(env.store.entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(env.store.entries))
	}
}

func TestRevocationRegistry_StoreErrors(t *testing.T) {
	env := newTestEnv(t)
	token := issueAccess(t, env, "dave")
	boom := errors.New("store down")
	env.store.err = boom

	if err := env.revocations.Revoke(context.Background(), token); !errors.Is(err, boom) {
		t.Fatalf("expected store error from Revoke, got %v", err)
	}
	if _, err := env.revocations.IsRevoked(context.Background(), token); !errors.Is(err, boom) {
		t.Fatalf("expected store error from IsRevoked, got %v", err)
	}
}
