package ports

import (
	"context"

	"github.com/medivex/identity-service/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to AuthService.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// ChangePasswordInput carries a self-service password change.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// AuthService is the credential lifecycle exposed to the HTTP layer.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Profile, error)
	Login(ctx context.Context, usernameOrEmail, password string) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	// Logout revokes accessToken and, when non-empty, refreshToken.
	Logout(ctx context.Context, accessToken, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, identityID string, in ChangePasswordInput) error
	Profile(ctx context.Context, identityID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, identityID string, upd domain.ProfileUpdate) (*domain.Profile, error)
}

// IdentityAdminService is the administrative view over identities.
type IdentityAdminService interface {
	List(ctx context.Context, filter ListIdentitiesFilter) ([]*domain.Profile, int64, error)
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Update(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
	Deactivate(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	AssignRole(ctx context.Context, id, roleID string) error
	RemoveRole(ctx context.Context, id, roleID string) error
}
