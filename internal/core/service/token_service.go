package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "medivex-identity"
)

// TokenConfig holds the signing key and lifetimes. The key is shared by every
// instance of the service.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type subjectLookup interface {
	FindByUsername(ctx context.Context, username string) (*domain.Identity, error)
}

type roleResolver interface {
	ResolveRoles(ctx context.Context, identity *domain.Identity) ([]string, error)
}

// tokenClaims is the JWT body. The role list is a snapshot taken at issuance.
// UID pins the token to one identity record so a later account reusing the
// username cannot inherit it.
type tokenClaims struct {
	UID   string           `json:"uid"`
	Roles []string         `json:"roles"`
	Type  domain.TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 bearer tokens.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	identities subjectLookup
	roles      roleResolver
	log        zerolog.Logger
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig, identities subjectLookup, roles roleResolver, log zerolog.Logger) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		identities: identities,
		roles:      roles,
		log:        log.With().Str("component", "token_service").Logger(),
		now:        time.Now,
	}, nil
}

// AccessTTL is the lifetime of access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// Issue signs a token of the given type for identity, embedding its current
// role names.
func (s *TokenService) Issue(ctx context.Context, identity *domain.Identity, typ domain.TokenType) (string, error) {
	roles, err := s.roles.ResolveRoles(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return s.sign(identity, roles, typ)
}

// IssuePair signs a fresh access and refresh token sharing one role snapshot.
func (s *TokenService) IssuePair(ctx context.Context, identity *domain.Identity) (*domain.TokenPair, error) {
	roles, err := s.roles.ResolveRoles(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	access, err := s.sign(identity, roles, domain.TokenAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(identity, roles, domain.TokenRefresh)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *TokenService) sign(identity *domain.Identity, roles []string, typ domain.TokenType) (string, error) {
	ttl := s.accessTTL
	if typ == domain.TokenRefresh {
		ttl = s.refreshTTL
	}
	if roles == nil {
		roles = []string{}
	}
	now := s.now().UTC()
	claims := tokenClaims{
		UID:   identity.ID,
		Roles: roles,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer, expiry and shape. Every failure is
// reported as ErrTokenInvalid so callers cannot tell which check failed.
func (s *TokenService) Validate(token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.Subject == "" || claims.UID == "" || claims.IssuedAt == nil {
		return nil, domain.ErrTokenInvalid
	}
	if claims.Type != domain.TokenAccess && claims.Type != domain.TokenRefresh {
		return nil, domain.ErrTokenInvalid
	}
	return &domain.TokenClaims{
		ID:         claims.ID,
		Subject:    claims.Subject,
		IdentityID: claims.UID,
		Roles:      claims.Roles,
		Type:       claims.Type,
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// Refresh trades a valid refresh token for a new pair carrying the subject's
// current roles. Access tokens are refused with ErrWrongTokenType.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.Validate(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != domain.TokenRefresh {
		return nil, domain.ErrWrongTokenType
	}
	identity, err := s.identities.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !identity.IsActive() {
		s.log.Warn().Str("subject", claims.Subject).Msg("refresh refused for inactive identity")
		return nil, domain.ErrTokenInvalid
	}
	if identity.ID != claims.IdentityID {
		s.log.Warn().Str("subject", claims.Subject).Msg("refresh token issued to a different identity")
		return nil, domain.ErrTokenInvalid
	}
	return s.IssuePair(ctx, identity)
}
