package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

// Token verification errors
var (
	// ErrInvalidToken is returned when a token is malformed, badly signed or
	// carries unusable claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 characters")
)

// projectClaims is the JWT payload of a project access token.
type projectClaims struct {
	Projects []string `json:"projects"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HMAC-SHA256 project access tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	clockSkew  time.Duration
	timeFunc   func() time.Time
}

// NewTokenService creates a TokenService from the auth configuration.
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, ErrWeakSecret
	}
	return &TokenService{
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		clockSkew:  2 * time.Minute,
		timeFunc:   time.Now,
	}, nil
}

// Sign issues a token for subject granting access to the given projects.
func (s *TokenService) Sign(subject string, projectIDs []uuid.UUID, lifetime time.Duration) (string, error) {
	now := s.timeFunc()
	projects := make([]string, len(projectIDs))
	for i, id := range projectIDs {
		projects[i] = id.String()
	}

	claims := projectClaims{
		Projects: projects,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign project token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns its claims.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*shared.Claims, error) {
	log := logger.FromContext(ctx)

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(s.timeFunc),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&projectClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("token validation failed: token expired", "error", err)
			return nil, ErrExpiredToken
		}
		log.Debug("token validation failed", "error", err, "error_type", fmt.Sprintf("%T", err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*projectClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	projectIDs := make([]uuid.UUID, 0, len(claims.Projects))
	for _, p := range claims.Projects {
		id, err := uuid.Parse(p)
		if err != nil {
			log.Debug("token validation failed: bad project claim", "project", p)
			return nil, ErrInvalidToken
		}
		projectIDs = append(projectIDs, id)
	}

	return &shared.Claims{Subject: claims.Subject, ProjectIDs: projectIDs}, nil
}
