package service

import (
	"context"
	"fmt"

	"github.com/fintrack/fintrack-api-go/internal/domain"
	"github.com/fintrack/fintrack-api-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// SessionService fronts the hosted session provider and validates the
// access tokens it issued. Tokens are HS256 JWTs; the validation secret
// must match the provider's signing secret.
type SessionService struct {
	provider  port.SessionProvider
	jwtSecret []byte
	logger    *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(provider port.SessionProvider, jwtSecret string, logger *zap.Logger) *SessionService {
	return &SessionService{
		provider:  provider,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// SignUp registers an email/password account.
func (s *SessionService) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignUp")
	defer span.End()

	if email == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password required"}
	}
	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.String("owner_id", session.Identity.ID))
	return session, nil
}

// SignIn exchanges credentials for a session.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignIn")
	defer span.End()

	if email == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password required"}
	}
	return s.provider.SignIn(ctx, email, password)
}

// SignInAnonymously opens a guest session. Guests get a real identity
// and a real ledger; nothing distinguishes them downstream.
func (s *SessionService) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignInAnonymously")
	defer span.End()

	session, err := s.provider.SignInAnonymously(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("guest session opened", zap.String("owner_id", session.Identity.ID))
	return session, nil
}

// Refresh rotates a session.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, &domain.ErrValidation{Field: "refresh_token", Message: "required"}
	}
	return s.provider.Refresh(ctx, refreshToken)
}

// SignOut revokes the session server-side. A provider failure is logged
// but not surfaced: the client drops its tokens either way.
func (s *SessionService) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignOut")
	defer span.End()

	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("signout: provider revocation failed", zap.Error(err))
	}
	return nil
}

// ============================================================
// Token validation — used by middleware
// ============================================================

// JWTClaims are the claims the middleware reads from access tokens.
type JWTClaims struct {
	Sub         string `json:"sub"`
	Email       string `json:"email,omitempty"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies an HS256 access token.
func (s *SessionService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims, nil
}
