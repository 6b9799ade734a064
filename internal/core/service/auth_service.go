package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

const defaultResetTTL = time.Hour

// timingHash is compared against when the login identity does not exist, so
// unknown users and wrong passwords take the same time.
const timingHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOa5bX3PbZzW3H3fTQ3bTA1KGkq2w0Q6C"

type roleCatalog interface {
	permissionGraph
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
}

type tokenIssuer interface {
	tokenValidator
	IssuePair(ctx context.Context, identity *domain.Identity) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}

type revoker interface {
	revocationChecker
	Revoke(ctx context.Context, token string) error
}

// AuthService implements registration, login, logout, email verification and
// password management.
type AuthService struct {
	identities  ports.IdentityRepository
	access      roleCatalog
	tokens      tokenIssuer
	revocations revoker
	lockout     *LockoutPolicy
	notifier    ports.Notifier
	resetTTL    time.Duration
	hashCost    int
	log         zerolog.Logger
	now         func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	identities ports.IdentityRepository,
	access roleCatalog,
	tokens tokenIssuer,
	revocations revoker,
	lockout *LockoutPolicy,
	notifier ports.Notifier,
	resetTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &AuthService{
		identities:  identities,
		access:      access,
		tokens:      tokens,
		revocations: revocations,
		lockout:     lockout,
		notifier:    notifier,
		resetTTL:    resetTTL,
		hashCost:    bcrypt.DefaultCost,
		log:         log.With().Str("component", "auth_service").Logger(),
		now:         time.Now,
	}
}

// Register creates an ACTIVE, unverified identity holding the default role and
// queues the verification and welcome emails.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.Username == "":
		return nil, domain.Invalid("username is required")
	case in.Email == "":
		return nil, domain.Invalid("email is required")
	case in.Password == "":
		return nil, domain.Invalid("password is required")
	}

	if err := s.ensureAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	role, err := s.access.FindRoleByName(ctx, domain.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("register: default role: %w", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	identity := &domain.Identity{
		ID:                     uuid.NewString(),
		Username:               in.Username,
		Email:                  in.Email,
		PasswordHash:           hash,
		FirstName:              strings.TrimSpace(in.FirstName),
		LastName:               strings.TrimSpace(in.LastName),
		Phone:                  strings.TrimSpace(in.Phone),
		Status:                 domain.AccountActive,
		EmailVerificationToken: uuid.NewString(),
		RoleIDs:                []string{role.ID},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	s.notify(ctx, domain.Notification{
		Kind:  domain.NotifyEmailVerification,
		To:    identity.Email,
		Token: identity.EmailVerificationToken,
	})
	s.notify(ctx, domain.Notification{
		Kind:      domain.NotifyWelcome,
		To:        identity.Email,
		FirstName: identity.FirstName,
	})

	s.log.Info().Str("username", identity.Username).Msg("identity registered")
	return domain.NewProfile(identity, []string{role.Name}), nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.identities.FindByUsername(ctx, username); err == nil {
		return domain.ErrDuplicateUsername
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("register: %w", err)
	}
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Login authenticates by username or email. Unknown identities and wrong
// passwords both yield ErrInvalidCredentials. A locked identity gets
// ErrAccountLocked whatever the password, and the counter is not touched.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*domain.LoginResult, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		return nil, domain.Invalid("username or email and password are required")
	}

	identity, err := s.identities.FindByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(timingHash), []byte(password))
			s.log.Warn().Str("login", login).Msg("login failed: invalid credentials")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if s.lockout.IsLocked(identity) {
		s.log.Warn().Str("username", identity.Username).Msg("login refused: account locked")
		return nil, domain.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		if _, err := s.lockout.RegisterFailure(ctx, identity); err != nil {
			return nil, err
		}
		s.log.Warn().
			Str("username", identity.Username).
			Int("attempts", identity.FailedLoginAttempts).
			Msg("login failed: invalid credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if identity.Status != domain.AccountActive {
		s.log.Warn().Str("username", identity.Username).Msg("login refused: account disabled")
		return nil, domain.ErrAccountDisabled
	}

	if err := s.lockout.RegisterSuccess(ctx, identity); err != nil {
		return nil, err
	}

	roles, err := s.access.ResolveRoles(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	tokens, err := s.tokens.IssuePair(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("username", identity.Username).Msg("login successful")
	return &domain.LoginResult{
		Tokens:  tokens,
		Profile: domain.NewProfile(identity, roles),
	}, nil
}

// Refresh mints a new pair from a refresh token that has not been revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.ErrTokenInvalid
	}
	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenInvalid
	}
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the access token and, if given, the refresh token. Revoking a
// token twice is not an error.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.revocations.Revoke(ctx, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.revocations.Revoke(ctx, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

// VerifyEmail redeems a single-use verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrTokenInvalid
	}
	identity, err := s.identities.ConsumeEmailVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return fmt.Errorf("verify email: %w", err)
	}
	s.log.Info().Str("username", identity.Username).Msg("email verified")
	return nil
}

// RequestPasswordReset issues a reset token valid for resetTTL, replacing any
// earlier one. Returns ErrIdentityNotFound for unknown addresses; the HTTP
// layer hides that from the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	identity, err := s.identities.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	token := uuid.NewString()
	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.identities.SetPasswordResetToken(ctx, identity.ID, token, expiresAt); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	s.notify(ctx, domain.Notification{
		Kind:  domain.NotifyPasswordReset,
		To:    identity.Email,
		Token: token,
	})
	s.log.Info().Str("username", identity.Username).Msg("password reset requested")
	return nil
}

// ResetPassword redeems a reset token. The hash update and the clearing of the
// token happen in one write, so a token works at most once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrTokenInvalid
	}
	if newPassword == "" {
		return domain.Invalid("new password is required")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	identity, err := s.identities.RedeemPasswordResetToken(ctx, token, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return fmt.Errorf("reset password: %w", err)
	}
	s.log.Info().Str("username", identity.Username).Msg("password reset")
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, identityID string, in ports.ChangePasswordInput) error {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}
	if in.NewPassword != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if in.NewPassword == "" {
		return domain.Invalid("new password is required")
	}
	hash, err := s.hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.Info().Str("username", identity.Username).Msg("password changed")
	return nil
}

// Profile returns the identity's profile with its current roles.
func (s *AuthService) Profile(ctx context.Context, identityID string) (*domain.Profile, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	roles, err := s.access.ResolveRoles(ctx, identity)
	if err != nil {
		return nil, err
	}
	return domain.NewProfile(identity, roles), nil
}

// UpdateProfile applies self-service profile changes. A new email address must
// be verified again.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	var verificationToken string
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		switch {
		case email == "":
			return nil, domain.Invalid("email must not be empty")
		case strings.EqualFold(email, identity.Email):
			upd.Email = nil
		default:
			if err := s.ensureEmailFree(ctx, email, identity.ID); err != nil {
				return nil, err
			}
			upd.Email = &email
			verificationToken = uuid.NewString()
		}
	}

	updated, err := s.identities.UpdateProfile(ctx, identity.ID, upd, verificationToken)
	if err != nil {
		return nil, err
	}
	if verificationToken != "" {
		s.notify(ctx, domain.Notification{
			Kind:  domain.NotifyEmailVerification,
			To:    updated.Email,
			Token: verificationToken,
		})
	}

	roles, err := s.access.ResolveRoles(ctx, updated)
	if err != nil {
		return nil, err
	}
	return domain.NewProfile(updated, roles), nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	other, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil && other.ID != ownerID:
		return domain.ErrDuplicateEmail
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

func (s *AuthService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Invalid("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// notify hands n to the notifier. Failures are logged and never surface.
func (s *AuthService) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification not sent")
	}
}
