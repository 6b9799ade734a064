package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	env := newTestEnv(t)
	p := env.register(t, "alice", "pw")
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		identity, _ := env.identities.FindByID(ctx, p.ID)
		locked, err := env.lockout.RegisterFailure(ctx, identity)
		if err != nil {
			t.Fatalf("RegisterFailure: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
	}

	identity, _ := env.identities.FindByID(ctx, p.ID)
	locked, err := env.lockout.RegisterFailure(ctx, identity)
	if err != nil {
		t.Fatalf("RegisterFailure: %v", err)
	}
	if !locked {
		t.Fatalf("expected lock on fifth failure")
	}

	stored, _ := env.identities.FindByID(ctx, p.ID)
	if !env.lockout.IsLocked(stored) {
		t.Fatalf("stored identity should be locked")
	}
	if want := env.clock.Now().Add(30 * time.Minute); !stored.AccountLockedUntil.Equal(want) {
		t.Fatalf("locked until %s, want %s", stored.AccountLockedUntil, want)
	}
	if stored.FailedLoginAttempts != 5 {
		t.Fatalf("expected counter 5, got %d", stored.FailedLoginAttempts)
	}

	env.clock.Advance(30*time.Minute + time.Second)
	if env.lockout.IsLocked(stored) {
		t.Fatalf("lock should lapse after the window")
	}
}

func TestLockoutPolicy_SuccessResets(t *testing.T) {
	env := newTestEnv(t)
	p := env.register(t, "bob", "pw")
	ctx := context.Background()

	identity, _ := env.identities.FindByID(ctx, p.ID)
	for i := 0; i < 3; i++ {
		if _, err := env.lockout.RegisterFailure(ctx, identity); err != nil {
			t.Fatalf("RegisterFailure: %v", err)
		}
	}
	if err := env.lockout.RegisterSuccess(ctx, identity); err != nil {
		t.Fatalf("RegisterSuccess: %v", err)
	}

	stored, _ := env.identities.FindByID(ctx, p.ID)
	if stored.FailedLoginAttempts != 0 || stored.AccountLockedUntil != nil {
		t.Fatalf("expected counters reset, got %+v", stored)
	}
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(env.clock.Now()) {
		t.Fatalf("expected last login stamped, got %v", stored.LastLoginAt)
	}
}

func TestNewLockoutPolicy_Defaults(t *testing.T) {
	p := NewLockoutPolicy(nil, 0, 0, testLogger)
	if p.maxAttempts != 5 || p.window != 30*time.Minute {
		t.Fatalf("unexpected defaults: %d %s", p.maxAttempts, p.window)
	}
}

func TestLockoutPolicy_ConcurrentFailuresAreAllCounted(t *testing.T) {
	env := newTestEnv(t)
	p := env.register(t, "carol", "pw")
	ctx := context.Background()

	const workers = 20
	var (
		wg     sync.WaitGroup
		locked atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity, err := env.identities.FindByID(ctx, p.ID)
			if err != nil {
				t.Errorf("FindByID: %v", err)
				return
			}
			ok, err := env.lockout.RegisterFailure(ctx, identity)
			if err != nil {
				t.Errorf("RegisterFailure: %v", err)
				return
			}
			if ok {
				locked.Add(1)
			}
		}()
	}
	wg.Wait()

	stored, _ := env.identities.FindByID(ctx, p.ID)
	if stored.FailedLoginAttempts != workers {
		t.Fatalf("expected counter %d, got %d", workers, stored.FailedLoginAttempts)
	}
	if !env.lockout.IsLocked(stored) {
		t.Fatalf("stored identity should be locked")
	}
	// Each increment observes a distinct count, so every failure from the
	// fifth onwards reports the lock.
	if got, want := int(locked.Load()), workers-5+1; got != want {
		t.Fatalf("expected %d failures to report the lock, got %d", want, got)
	}
}
