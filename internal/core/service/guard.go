package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
)

// GuardOutcome records why the guard did or did not authenticate a request.
type GuardOutcome string

const (
	OutcomePublic        GuardOutcome = "public"
	OutcomeAnonymous     GuardOutcome = "anonymous"
	OutcomeInvalid       GuardOutcome = "invalid"
	OutcomeRevoked       GuardOutcome = "revoked"
	OutcomeUnknown       GuardOutcome = "unknown_subject"
	OutcomeError         GuardOutcome = "error"
	OutcomeAuthenticated GuardOutcome = "authenticated"
)

// DefaultPublicPaths are reachable without a token. Entries ending in "/" match
// as prefixes. Logout is deliberately absent.
var DefaultPublicPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/refresh",
	"/api/auth/verify-email",
	"/api/auth/request-password-reset",
	"/api/auth/reset-password",
	"/api/health",
	"/health",
	"/health/",
	"/metrics",
	"/swagger/",
}

type revocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type permissionGraph interface {
	ResolveRoles(ctx context.Context, identity *domain.Identity) ([]string, error)
	EffectivePermissions(ctx context.Context, roleNames []string) ([]string, error)
}

// AuthenticationGuard turns an Authorization header into a Principal. It never
// rejects a request itself; a nil principal means "unauthenticated" and the
// authorization layer decides what that costs.
//
// Roles and permissions are always reloaded from the store, so role changes,
// deactivation and deletion take effect on the next request. Role claims in the
// token are not consulted.
type AuthenticationGuard struct {
	tokens      tokenValidator
	revocations revocationChecker
	identities  subjectLookup
	access      permissionGraph
	public      []string
	log         zerolog.Logger
}

func NewAuthenticationGuard(
	tokens tokenValidator,
	revocations revocationChecker,
	identities subjectLookup,
	access permissionGraph,
	publicPaths []string,
	log zerolog.Logger,
) *AuthenticationGuard {
	if publicPaths == nil {
		publicPaths = DefaultPublicPaths
	}
	return &AuthenticationGuard{
		tokens:      tokens,
		revocations: revocations,
		identities:  identities,
		access:      access,
		public:      publicPaths,
		log:         log.With().Str("component", "guard").Logger(),
	}
}

// IsPublic reports whether path is on the allowlist.
func (g *AuthenticationGuard) IsPublic(path string) bool {
	for _, p := range g.public {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p || path == p+"/" {
			return true
		}
	}
	return false
}

// Authenticate runs the guard for one request.
func (g *AuthenticationGuard) Authenticate(ctx context.Context, path, authorization string) (*domain.Principal, GuardOutcome) {
	if g.IsPublic(path) {
		return nil, OutcomePublic
	}

	token, ok := BearerToken(authorization)
	if !ok {
		return nil, OutcomeAnonymous
	}

	claims, err := g.tokens.Validate(token)
	if err != nil || claims.Type != domain.TokenAccess {
		g.log.Debug().Str("path", path).Msg("bearer token rejected")
		return nil, OutcomeInvalid
	}

	revoked, err := g.revocations.IsRevoked(ctx, token)
	if err != nil {
		// Fail closed.
		g.log.Error().Err(err).Str("path", path).Msg("revocation check failed")
		return nil, OutcomeError
	}
	if revoked {
		g.log.Warn().Str("subject", claims.Subject).Str("path", path).Msg("revoked token presented")
		return nil, OutcomeRevoked
	}

	identity, err := g.identities.FindByUsername(ctx, claims.Subject)
	if err != nil {
		g.log.Debug().Err(err).Str("subject", claims.Subject).Msg("token subject not resolvable")
		return nil, OutcomeUnknown
	}
	if !identity.IsActive() {
		return nil, OutcomeUnknown
	}
	if identity.ID != claims.IdentityID {
		g.log.Warn().Str("subject", claims.Subject).Str("path", path).Msg("token issued to a different identity")
		return nil, OutcomeUnknown
	}

	roles, err := g.access.ResolveRoles(ctx, identity)
	if err != nil {
		g.log.Error().Err(err).Str("subject", claims.Subject).Msg("role resolution failed")
		return nil, OutcomeError
	}
	perms, err := g.access.EffectivePermissions(ctx, roles)
	if err != nil {
		g.log.Error().Err(err).Str("subject", claims.Subject).Msg("permission resolution failed")
		return nil, OutcomeError
	}

	return &domain.Principal{
		IdentityID:  identity.ID,
		Username:    identity.Username,
		Roles:       roles,
		Permissions: perms,
		Token:       token,
		ExpiresAt:   claims.ExpiresAt,
	}, OutcomeAuthenticated
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
