package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/api/middleware"
	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

type stubAuthService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error)
	loginFn          func(ctx context.Context, login, password string) (*domain.LoginResult, error)
	refreshFn        func(ctx context.Context, token string) (*domain.TokenPair, error)
	logoutFn         func(ctx context.Context, access, refresh string) error
	verifyFn         func(ctx context.Context, token string) error
	requestResetFn   func(ctx context.Context, email string) error
	resetFn          func(ctx context.Context, token, pw string) error
	changePasswordFn func(ctx context.Context, id string, in ports.ChangePasswordInput) error
	profileFn        func(ctx context.Context, id string) (*domain.Profile, error)
	updateProfileFn  func(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, login, password string) (*domain.LoginResult, error) {
	return s.loginFn(ctx, login, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, token string) (*domain.TokenPair, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthService) Logout(ctx context.Context, access, refresh string) error {
	return s.logoutFn(ctx, access, refresh)
}

func (s *stubAuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.verifyFn(ctx, token)
}

func (s *stubAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.requestResetFn(ctx, email)
}

func (s *stubAuthService) ResetPassword(ctx context.Context, token, pw string) error {
	return s.resetFn(ctx, token, pw)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, id string, in ports.ChangePasswordInput) error {
	return s.changePasswordFn(ctx, id, in)
}

func (s *stubAuthService) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	return s.profileFn(ctx, id)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	return s.updateProfileFn(ctx, id, upd)
}

type stubAdminService struct {
	listFn       func(ctx context.Context, f ports.ListIdentitiesFilter) ([]*domain.Profile, int64, error)
	getFn        func(ctx context.Context, id string) (*domain.Profile, error)
	updateFn     func(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
	deactivateFn func(ctx context.Context, id string) error
	activateFn   func(ctx context.Context, id string) error
	assignFn     func(ctx context.Context, id, roleID string) error
	removeFn     func(ctx context.Context, id, roleID string) error
}

func (s *stubAdminService) List(ctx context.Context, f ports.ListIdentitiesFilter) ([]*domain.Profile, int64, error) {
	return s.listFn(ctx, f)
}

func (s *stubAdminService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.getFn(ctx, id)
}

func (s *stubAdminService) Update(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	return s.updateFn(ctx, id, upd)
}

func (s *stubAdminService) Deactivate(ctx context.Context, id string) error {
	return s.deactivateFn(ctx, id)
}

func (s *stubAdminService) Activate(ctx context.Context, id string) error {
	return s.activateFn(ctx, id)
}

func (s *stubAdminService) AssignRole(ctx context.Context, id, roleID string) error {
	return s.assignFn(ctx, id, roleID)
}

func (s *stubAdminService) RemoveRole(ctx context.Context, id, roleID string) error {
	return s.removeFn(ctx, id, roleID)
}

// newContext builds an echo context for a request with an optional JSON body.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withPrincipal(c echo.Context, id string, perms ...string) {
	middleware.SetPrincipal(c, &domain.Principal{
		IdentityID:  id,
		Username:    "user-" + id,
		Permissions: perms,
		Token:       "access-" + id,
	})
}
