package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fintrack/fintrack-api-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// SessionProvider implementation — hosted auth via GoTrue
// ============================================================

// gotrueSession maps the GoTrue token/signup response.
type gotrueSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		IsAnonymous bool   `json:"is_anonymous"`
	} `json:"user"`
}

// gotrueError maps the GoTrue error body; the fields vary by endpoint.
type gotrueError struct {
	Message    string `json:"msg"`
	ErrorDesc  string `json:"error_description"`
	ErrCode    string `json:"error_code"`
	PlainError string `json:"error"`
}

func (e *gotrueError) message() string {
	for _, m := range []string{e.Message, e.ErrorDesc, e.PlainError} {
		if m != "" {
			// the user sees this verbatim; drop any provider prefix
			return strings.TrimPrefix(strings.TrimPrefix(m, "Supabase: "), "AuthApiError: ")
		}
	}
	return "authentication failed"
}

// SignUp registers a new email/password user.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	return c.authRequest(ctx, "signup", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignIn exchanges email/password credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	return c.authRequest(ctx, "token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignInAnonymously creates a guest identity with no credentials.
func (c *Client) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInAnonymously")
	defer span.End()

	return c.authRequest(ctx, "signup", map[string]string{})
}

// Refresh rotates the session using a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Refresh")
	defer span.End()

	return c.authRequest(ctx, "token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	url := fmt.Sprintf("%s/auth/v1/logout", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: logout request failed", zap.Error(err))
		return &domain.ErrExternalService{Service: "supabase/auth", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("supabase: logout non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return &domain.ErrExternalService{
			Service: "supabase/auth",
			Err:     fmt.Errorf("logout returned %d", resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) authRequest(ctx context.Context, path string, payload map[string]string) (*domain.Session, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: auth request failed", zap.String("path", path), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gotrueError
		_ = json.Unmarshal(body, &ge)
		c.logger.Warn("supabase: auth non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", ge.ErrCode),
		)
		if resp.StatusCode == http.StatusUnprocessableEntity || ge.ErrCode == "user_already_exists" {
			return nil, &domain.ErrConflict{Message: ge.message()}
		}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &domain.ErrUnauthorized{Message: ge.message()}
		}
		return nil, &domain.ErrExternalService{
			Service: "supabase/auth",
			Err:     fmt.Errorf("auth returned %d: %s", resp.StatusCode, ge.message()),
		}
	}

	var gs gotrueSession
	if err := json.Unmarshal(body, &gs); err != nil {
		return nil, fmt.Errorf("decode auth session: %w", err)
	}

	return &domain.Session{
		Identity: domain.Identity{
			ID:        gs.User.ID,
			Email:     gs.User.Email,
			Anonymous: gs.User.IsAnonymous,
		},
		AccessToken:  gs.AccessToken,
		RefreshToken: gs.RefreshToken,
		ExpiresIn:    gs.ExpiresIn,
	}, nil
}
