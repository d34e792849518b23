package memstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fintrack/fintrack-api-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Sessions is an in-memory SessionProvider. Passwords are bcrypt-hashed
// and access tokens are HS256 JWTs signed with the same secret the API
// validates against, so the full auth flow works without a hosted
// provider.
type Sessions struct {
	mu       sync.Mutex
	accounts map[string]*account // email -> account
	refresh  map[string]domain.Identity
	revoked  map[string]struct{}

	secret    []byte
	accessTTL time.Duration
}

type account struct {
	identity domain.Identity
	hash     []byte
}

// NewSessions creates an in-memory session provider signing tokens with
// secret, valid for accessTTL.
func NewSessions(secret string, accessTTL time.Duration) *Sessions {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &Sessions{
		accounts:  make(map[string]*account),
		refresh:   make(map[string]domain.Identity),
		revoked:   make(map[string]struct{}),
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// SignUp registers a new email/password account and opens a session.
func (s *Sessions) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "credentials", Message: "email and password required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		return nil, &domain.ErrConflict{Message: "user already registered"}
	}
	acct := &account{
		identity: domain.Identity{ID: uuid.New().String(), Email: email},
		hash:     hash,
	}
	s.accounts[email] = acct
	s.mu.Unlock()

	return s.open(acct.identity)
}

// SignIn verifies credentials and opens a session.
func (s *Sessions) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	acct, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "invalid login credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid login credentials"}
	}
	return s.open(acct.identity)
}

// SignInAnonymously opens a guest session with a throwaway identity.
func (s *Sessions) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	return s.open(domain.Identity{ID: uuid.New().String(), Anonymous: true})
}

// Refresh rotates a session. The old refresh token is invalidated.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	s.mu.Lock()
	identity, ok := s.refresh[refreshToken]
	if ok {
		delete(s.refresh, refreshToken)
	}
	s.mu.Unlock()
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
	}
	return s.open(identity)
}

// SignOut revokes the access token.
func (s *Sessions) SignOut(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	s.revoked[accessToken] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Revoked reports whether an access token was signed out.
func (s *Sessions) Revoked(accessToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[accessToken]
	return ok
}

func (s *Sessions) open(identity domain.Identity) (*domain.Session, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}
	if identity.Email != "" {
		claims["email"] = identity.Email
	}
	if identity.Anonymous {
		claims["is_anonymous"] = true
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errors.New("sign access token: " + err.Error())
	}

	refreshToken := uuid.New().String()
	s.mu.Lock()
	s.refresh[refreshToken] = identity
	s.mu.Unlock()

	return &domain.Session{
		Identity:     identity,
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}
