package domain

import (
	"slices"
	"time"
)

// AccountStatus is the administrative state of an identity. Lock state is not
// part of it; see Identity.IsLocked.
type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

// Identity is a registered principal. Roles are referenced by id only.
type Identity struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	FirstName    string        `json:"first_name,omitempty"`
	LastName     string        `json:"last_name,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Status       AccountStatus `json:"account_status"`

	EmailVerified          bool       `json:"email_verified"`
	EmailVerificationToken string     `json:"-"`
	PasswordResetToken     string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	FailedLoginAttempts int        `json:"-"`
	AccountLockedUntil  *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	RoleIDs   []string   `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// IsLocked reports whether the lock window is still open at now.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.AccountLockedUntil != nil && i.AccountLockedUntil.After(now)
}

// IsActive reports whether the identity may authenticate at all.
func (i *Identity) IsActive() bool {
	return i.Status == AccountActive && i.DeletedAt == nil
}

// HasRole reports whether roleID is attached to the identity.
func (i *Identity) HasRole(roleID string) bool {
	return slices.Contains(i.RoleIDs, roleID)
}

// ProfileUpdate carries optional profile changes; nil fields are left as-is.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// Profile is the outward view of an identity with its resolved role names.
type Profile struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	AccountStatus AccountStatus `json:"account_status"`
	EmailVerified bool          `json:"email_verified"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	Roles         []string      `json:"roles"`
}

// NewProfile builds the outward view of id with the given role names.
func NewProfile(id *Identity, roles []string) *Profile {
	if roles == nil {
		roles = []string{}
	}
	return &Profile{
		ID:            id.ID,
		Username:      id.Username,
		Email:         id.Email,
		FirstName:     id.FirstName,
		LastName:      id.LastName,
		Phone:         id.Phone,
		AccountStatus: id.Status,
		EmailVerified: id.EmailVerified,
		LastLoginAt:   id.LastLoginAt,
		CreatedAt:     id.CreatedAt,
		Roles:         roles,
	}
}
