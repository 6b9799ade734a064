package handler

import "github.com/medivex/identity-service/internal/core/domain"

// errorResponse documents the error envelope rendered by the central error
// handler.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type registerRequest struct {
	Username  string `json:"username"   validate:"required,min=3,max=50"`
	Email     string `json:"email"      validate:"required,email"`
	Password  string `json:"password"   validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
	Phone     string `json:"phone"      validate:"max=30"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required"`
	Password        string `json:"password"          validate:"required"`
}

type loginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// --- Users ---

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type updateProfileRequest struct {
	Email     *string `json:"email"      validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=100"`
	Phone     *string `json:"phone"      validate:"omitempty,max=30"`
}

func (r updateProfileRequest) toDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

type listUsersResponse struct {
	Items []*domain.Profile `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// --- Roles & permissions ---

type createRoleRequest struct {
	Name        string `json:"name"        validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=1,max=50"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

type createPermissionRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
	Resource    string `json:"resource"    validate:"required,max=50"`
	Action      string `json:"action"      validate:"required,max=50"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Resource    *string `json:"resource"    validate:"omitempty,min=1,max=50"`
	Action      *string `json:"action"      validate:"omitempty,min=1,max=50"`
	IsActive    *bool   `json:"is_active"`
}
