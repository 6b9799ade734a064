package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

type roleLookup interface {
	ResolveRoles(ctx context.Context, identity *domain.Identity) ([]string, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
}

// IdentityAdminService is the administrative view over identities.
type IdentityAdminService struct {
	identities ports.IdentityRepository
	access     roleLookup
	log        zerolog.Logger
	now        func() time.Time
}

var _ ports.IdentityAdminService = (*IdentityAdminService)(nil)

func NewIdentityAdminService(identities ports.IdentityRepository, access roleLookup, log zerolog.Logger) *IdentityAdminService {
	return &IdentityAdminService{
		identities: identities,
		access:     access,
		log:        log.With().Str("component", "identity_admin").Logger(),
		now:        time.Now,
	}
}

func (s *IdentityAdminService) List(ctx context.Context, filter ports.ListIdentitiesFilter) ([]*domain.Profile, int64, error) {
	filter = filter.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)

	identities, total, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}

	profiles := make([]*domain.Profile, 0, len(identities))
	for _, identity := range identities {
		p, err := s.profile(ctx, identity)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, nil
}

func (s *IdentityAdminService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, identity)
}

// Update changes profile fields on behalf of an administrator. Email changes
// keep the verification state.
func (s *IdentityAdminService) Update(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			return nil, domain.Invalid("email must not be empty")
		}
		other, err := s.identities.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != identity.ID:
			return nil, domain.ErrDuplicateEmail
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("update identity: %w", err)
		}
		upd.Email = &email
	}
	updated, err := s.identities.UpdateProfile(ctx, identity.ID, upd, "")
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, updated)
}

// Deactivate soft-deletes the identity. Its username and email become free
// for new registrations.
func (s *IdentityAdminService) Deactivate(ctx context.Context, id string) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return err
	}
	at := s.now().UTC()
	if err := s.identities.SetStatus(ctx, identity.ID, domain.AccountInactive, &at); err != nil {
		return err
	}
	s.log.Info().Str("username", identity.Username).Msg("identity deactivated")
	return nil
}

// Activate restores a deactivated identity. It fails with a duplicate error if
// its username or email has been taken in the meantime.
func (s *IdentityAdminService) Activate(ctx context.Context, id string) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.identities.SetStatus(ctx, identity.ID, domain.AccountActive, nil); err != nil {
		return err
	}
	s.log.Info().Str("username", identity.Username).Msg("identity activated")
	return nil
}

func (s *IdentityAdminService) AssignRole(ctx context.Context, id, roleID string) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return err
	}
	role, err := s.access.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.IsActive {
		return domain.Invalid("role %s is inactive", role.Name)
	}
	if err := s.identities.AddRole(ctx, identity.ID, role.ID); err != nil {
		return err
	}
	s.log.Info().Str("username", identity.Username).Str("role", role.Name).Msg("role assigned")
	return nil
}

func (s *IdentityAdminService) RemoveRole(ctx context.Context, id, roleID string) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !identity.HasRole(roleID) {
		return domain.ErrRoleNotFound
	}
	if err := s.identities.RemoveRole(ctx, identity.ID, roleID); err != nil {
		return err
	}
	s.log.Info().Str("username", identity.Username).Str("role_id", roleID).Msg("role removed")
	return nil
}

func (s *IdentityAdminService) profile(ctx context.Context, identity *domain.Identity) (*domain.Profile, error) {
	roles, err := s.access.ResolveRoles(ctx, identity)
	if err != nil {
		return nil, err
	}
	return domain.NewProfile(identity, roles), nil
}
