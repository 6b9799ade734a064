package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

var testLogger = zerolog.Nop()

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.RoleIDs = slices.Clone(i.RoleIDs)
	return &c
}

type stubIdentityRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Identity
	order []string
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{byID: make(map[string]*domain.Identity)}
}

func (r *stubIdentityRepo) live(match func(*domain.Identity) bool) *domain.Identity {
	for _, id := range r.order {
		i := r.byID[id]
		if i.DeletedAt == nil && match(i) {
			return i
		}
	}
	return nil
}

func (r *stubIdentityRepo) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live(func(i *domain.Identity) bool { return i.Username == identity.Username }) != nil {
		return domain.ErrDuplicateUsername
	}
	if r.live(func(i *domain.Identity) bool { return strings.EqualFold(i.Email, identity.Email) }) != nil {
		return domain.ErrDuplicateEmail
	}
	r.byID[identity.ID] = cloneIdentity(identity)
	r.order = append(r.order, identity.ID)
	return nil
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byID[id]; ok {
		return cloneIdentity(i), nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.live(match); i != nil {
		return cloneIdentity(i), nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) FindByUsername(_ context.Context, username string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return i.Username == username })
}

func (r *stubIdentityRepo) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return strings.EqualFold(i.Email, email) })
}

func (r *stubIdentityRepo) FindByUsernameOrEmail(_ context.Context, login string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool {
		return i.Username == login || strings.EqualFold(i.Email, login)
	})
}

func (r *stubIdentityRepo) List(_ context.Context, filter ports.ListIdentitiesFilter) ([]*domain.Identity, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.Identity
	for _, id := range r.order {
		i := r.byID[id]
		if i.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(i.Username+" "+i.Email), strings.ToLower(filter.Search)) {
			continue
		}
		all = append(all, cloneIdentity(i))
	}
	start := (filter.Page - 1) * filter.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+filter.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *stubIdentityRepo) mutate(id string, fn func(*domain.Identity) error) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	if err := fn(i); err != nil {
		return nil, err
	}
	return cloneIdentity(i), nil
}

func (r *stubIdentityRepo) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate, verificationToken string) (*domain.Identity, error) {
	return r.mutate(id, func(i *domain.Identity) error {
		if upd.Email != nil {
			i.Email = *upd.Email
			if verificationToken != "" {
				i.EmailVerified = false
				i.EmailVerificationToken = verificationToken
			}
		}
		if upd.FirstName != nil {
			i.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			i.LastName = *upd.LastName
		}
		if upd.Phone != nil {
			i.Phone = *upd.Phone
		}
		return nil
	})
}

func (r *stubIdentityRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		i.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (r *stubIdentityRepo) SetStatus(_ context.Context, id string, status domain.AccountStatus, deletedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	if deletedAt == nil && i.DeletedAt != nil {
		if r.live(func(o *domain.Identity) bool { return o.Username == i.Username }) != nil {
			return domain.ErrDuplicateUsername
		}
		if r.live(func(o *domain.Identity) bool { return strings.EqualFold(o.Email, i.Email) }) != nil {
			return domain.ErrDuplicateEmail
		}
	}
	i.Status = status
	i.DeletedAt = deletedAt
	return nil
}

func (r *stubIdentityRepo) AddRole(_ context.Context, id, roleID string) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		if !i.HasRole(roleID) {
			i.RoleIDs = append(i.RoleIDs, roleID)
		}
		return nil
	})
	return err
}

func (r *stubIdentityRepo) RemoveRole(_ context.Context, id, roleID string) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		i.RoleIDs = slices.DeleteFunc(i.RoleIDs, func(s string) bool { return s == roleID })
		return nil
	})
	return err
}

func (r *stubIdentityRepo) ConsumeEmailVerificationToken(_ context.Context, token string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.live(func(i *domain.Identity) bool { return i.EmailVerificationToken == token })
	if i == nil {
		return nil, domain.ErrIdentityNotFound
	}
	i.EmailVerified = true
	i.EmailVerificationToken = ""
	return cloneIdentity(i), nil
}

func (r *stubIdentityRepo) SetPasswordResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		i.PasswordResetToken = token
		i.PasswordResetExpiresAt = &expiresAt
		return nil
	})
	return err
}

func (r *stubIdentityRepo) RedeemPasswordResetToken(_ context.Context, token, passwordHash string, now time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.live(func(i *domain.Identity) bool {
		return i.PasswordResetToken == token && i.PasswordResetExpiresAt != nil && i.PasswordResetExpiresAt.After(now)
	})
	if i == nil {
		return nil, domain.ErrIdentityNotFound
	}
	i.PasswordHash = passwordHash
	i.PasswordResetToken = ""
	i.PasswordResetExpiresAt = nil
	return cloneIdentity(i), nil
}

func (r *stubIdentityRepo) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	i, err := r.mutate(id, func(i *domain.Identity) error {
		i.FailedLoginAttempts++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return i.FailedLoginAttempts, nil
}

func (r *stubIdentityRepo) LockUntil(_ context.Context, id string, until time.Time) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		i.AccountLockedUntil = &until
		return nil
	})
	return err
}

func (r *stubIdentityRepo) RecordSuccessfulLogin(_ context.Context, id string, at time.Time) error {
	_, err := r.mutate(id, func(i *domain.Identity) error {
		i.FailedLoginAttempts = 0
		i.AccountLockedUntil = nil
		i.LastLoginAt = &at
		return nil
	})
	return err
}

// stubAccessRepo serves both roles and permissions.
type stubAccessRepo struct {
	mu    sync.Mutex
	roles map[string]*domain.Role
	perms map[string]*domain.Permission
}

func newStubAccessRepo() *stubAccessRepo {
	return &stubAccessRepo{
		roles: make(map[string]*domain.Role),
		perms: make(map[string]*domain.Permission),
	}
}

func cloneRole(r *domain.Role) *domain.Role {
	c := *r
	c.PermissionIDs = slices.Clone(r.PermissionIDs)
	return &c
}

func (s *stubAccessRepo) CreateRole(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if domain.NameKey(r.Name) == domain.NameKey(role.Name) {
			return domain.ErrDuplicateName
		}
	}
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *stubAccessRepo) UpdateRole(_ context.Context, id string, upd domain.RoleUpdate) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.IsActive != nil {
		r.IsActive = *upd.IsActive
	}
	return cloneRole(r), nil
}

func (s *stubAccessRepo) FindRoleByID(_ context.Context, id string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.roles[id]; ok {
		return cloneRole(r), nil
	}
	return nil, domain.ErrRoleNotFound
}

func (s *stubAccessRepo) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if domain.NameKey(r.Name) == domain.NameKey(name) {
			return cloneRole(r), nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (s *stubAccessRepo) FindRolesByIDs(_ context.Context, ids []string) ([]*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Role
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, cloneRole(r))
		}
	}
	return out, nil
}

func (s *stubAccessRepo) FindRolesByNames(_ context.Context, names []string) ([]*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Role
	for _, r := range s.roles {
		for _, n := range names {
			if domain.NameKey(r.Name) == domain.NameKey(n) {
				out = append(out, cloneRole(r))
			}
		}
	}
	return out, nil
}

func (s *stubAccessRepo) ListRoles(_ context.Context, filter ports.ListRolesFilter) ([]*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Role
	for _, r := range s.roles {
		if filter.ActiveOnly && !r.IsActive {
			continue
		}
		out = append(out, cloneRole(r))
	}
	slices.SortFunc(out, func(a, b *domain.Role) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *stubAccessRepo) AddRolePermission(_ context.Context, roleID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return domain.ErrRoleNotFound
	}
	if !slices.Contains(r.PermissionIDs, permissionID) {
		r.PermissionIDs = append(r.PermissionIDs, permissionID)
	}
	return nil
}

func (s *stubAccessRepo) RemoveRolePermission(_ context.Context, roleID, permissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return domain.ErrRoleNotFound
	}
	r.PermissionIDs = slices.DeleteFunc(r.PermissionIDs, func(id string) bool { return id == permissionID })
	return nil
}

func (s *stubAccessRepo) CreatePermission(_ context.Context, perm *domain.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.perms {
		if domain.NameKey(p.Name) == domain.NameKey(perm.Name) {
			return domain.ErrDuplicateName
		}
	}
	c := *perm
	s.perms[perm.ID] = &c
	return nil
}

func (s *stubAccessRepo) UpdatePermission(_ context.Context, id string, upd domain.PermissionUpdate) (*domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perms[id]
	if !ok {
		return nil, domain.ErrPermissionNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	c := *p
	return &c, nil
}

func (s *stubAccessRepo) FindPermissionByID(_ context.Context, id string) (*domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.perms[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, domain.ErrPermissionNotFound
}

func (s *stubAccessRepo) FindPermissionByName(_ context.Context, name string) (*domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.perms {
		if domain.NameKey(p.Name) == domain.NameKey(name) {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPermissionNotFound
}

func (s *stubAccessRepo) FindPermissionsByIDs(_ context.Context, ids []string) ([]*domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Permission
	for _, id := range ids {
		if p, ok := s.perms[id]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *stubAccessRepo) ListPermissions(_ context.Context, activeOnly bool) ([]*domain.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Permission
	for _, p := range s.perms {
		if activeOnly && !p.IsActive {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

// stubRevocationStore expires entries against the fake clock.
type stubRevocationStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	entries map[string]time.Time
	err     error
}

func newStubRevocationStore(clock *fakeClock) *stubRevocationStore {
	return &stubRevocationStore{clock: clock, entries: make(map[string]time.Time)}
}

func (s *stubRevocationStore) Put(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries[key] = s.clock.Now().Add(ttl)
	return nil
}

func (s *stubRevocationStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	exp, ok := s.entries[key]
	return ok && exp.After(s.clock.Now()), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last(kind domain.NotificationKind) (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return domain.Notification{}, false
}

// testEnv wires every service against in-memory stores sharing one clock.
type testEnv struct {
	clock       *fakeClock
	identities  *stubIdentityRepo
	access      *stubAccessRepo
	store       *stubRevocationStore
	notifier    *recordingNotifier
	graph       *AccessControlGraph
	tokens      *TokenService
	revocations *RevocationRegistry
	lockout     *LockoutPolicy
	guard       *AuthenticationGuard
	auth        *AuthService
	admin       *IdentityAdminService
}

const testSecret = "test-signing-secret"

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:      newFakeClock(),
		identities: newStubIdentityRepo(),
		access:     newStubAccessRepo(),
		notifier:   &recordingNotifier{},
	}
	env.store = newStubRevocationStore(env.clock)

	env.graph = NewAccessControlGraph(env.access, env.access, testLogger)
	env.graph.now = env.clock.Now
	if err := env.graph.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tokens, err := NewTokenService(TokenConfig{Secret: testSecret}, env.identities, env.graph, testLogger)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	tokens.now = env.clock.Now
	env.tokens = tokens

	env.revocations = NewRevocationRegistry(env.store, env.tokens, "blacklist:", testLogger)
	env.revocations.now = env.clock.Now

	env.lockout = NewLockoutPolicy(env.identities, 5, 30*time.Minute, testLogger)
	env.lockout.now = env.clock.Now

	env.guard = NewAuthenticationGuard(env.tokens, env.revocations, env.identities, env.graph, nil, testLogger)

	env.auth = NewAuthService(env.identities, env.graph, env.tokens, env.revocations, env.lockout, env.notifier, time.Hour, testLogger)
	env.auth.now = env.clock.Now
	env.auth.hashCost = bcrypt.MinCost

	env.admin = NewIdentityAdminService(env.identities, env.graph, testLogger)
	env.admin.now = env.clock.Now
	return env
}

func (e *testEnv) register(t testing.TB, username, password string) *domain.Profile {
	t.Helper()
	p, err := e.auth.Register(context.Background(), ports.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  password,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return p
}

// grantRole attaches the named seeded role to the identity.
func (e *testEnv) grantRole(t testing.TB, identityID, roleName string) {
	t.Helper()
	role, err := e.access.FindRoleByName(context.Background(), roleName)
	if err != nil {
		t.Fatalf("find role %s: %v", roleName, err)
	}
	if err := e.identities.AddRole(context.Background(), identityID, role.ID); err != nil {
		t.Fatalf("add role: %v", err)
	}
}
