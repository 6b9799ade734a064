package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
	"github.com/medivex/identity-service/internal/core/service"
	"github.com/medivex/identity-service/internal/infrastructure/http/handlers"
)

// tokenGuard authenticates "Bearer <id>" as the principal registered under id.
type tokenGuard struct {
	principals map[string]*domain.Principal
}

func (g *tokenGuard) Authenticate(ctx context.Context, path, authorization string) (*domain.Principal, service.GuardOutcome) {
	token, ok := service.BearerToken(authorization)
	if !ok {
		return nil, service.OutcomeAnonymous
	}
	p, ok := g.principals[token]
	if !ok {
		return nil, service.OutcomeInvalid
	}
	return p, service.OutcomeAuthenticated
}

type listOnlyAdmin struct {
	ports.IdentityAdminService
}

func (listOnlyAdmin) List(ctx context.Context, f ports.ListIdentitiesFilter) ([]*domain.Profile, int64, error) {
	return []*domain.Profile{}, 0, nil
}

type healthyPinger struct{}

func (healthyPinger) Ping(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	guard := &tokenGuard{principals: map[string]*domain.Principal{
		"admin": {IdentityID: "1", Username: "admin", Permissions: []string{domain.PermUserRead}, Token: "admin"},
		"plain": {IdentityID: "2", Username: "plain", Token: "plain"},
	}}
	return NewRouter(Dependencies{
		Guard:      guard,
		Admin:      listOnlyAdmin{},
		Readiness:  map[string]handlers.Pinger{"mongodb": healthyPinger{}},
		Registerer: prometheus.NewRegistry(),
		Log:        zerolog.Nop(),
	})
}

func TestRouter_PermissionGating(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"unknown token", "forged", http.StatusUnauthorized},
		{"missing permission", "plain", http.StatusForbidden},
		{"granted", "admin", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestRouter_LogoutRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRouter_HealthProbes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/api/health", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestRouter_AuthRoutesAreRateLimited(t *testing.T) {
	e := NewRouter(Dependencies{
		Guard:         &tokenGuard{},
		AuthRateLimit: 1,
		Registerer:    prometheus.NewRegistry(),
		Log:           zerolog.Nop(),
	})

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last)
	}
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	e := NewRouter(Dependencies{
		Guard:         &tokenGuard{},
		AuthRateLimit: 1,
		Registerer:    prometheus.NewRegistry(),
		Log:           zerolog.Nop(),
	})

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 despite rotating forwarding headers", last)
	}
}
