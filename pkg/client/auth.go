package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

const authPrefix = "/auth/v1"

// Credentials is the email/password payload for sign up and sign in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the session payload returned by the token endpoints.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         domain.User `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	return s
}

// SignUp registers a new account. The response body is ignored: the
// account is not usable until its email address is confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	body := Credentials{Email: email, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/signup", "", body, nil); err != nil {
		return fmt.Errorf("client.SignUp: %w", err)
	}
	return nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var tok tokenResponse
	body := Credentials{Email: email, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/token?grant_type=password", "", body, &tok); err != nil {
		return nil, fmt.Errorf("client.SignInWithPassword: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("client.SignInWithPassword: response has no access token")
	}
	return tok.session(time.Now()), nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var tok tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/token?grant_type=refresh_token", "", body, &tok); err != nil {
		return nil, fmt.Errorf("client.RefreshSession: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("client.RefreshSession: response has no access token")
	}
	return tok.session(time.Now()), nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.doRequest(ctx, http.MethodPost, authPrefix+"/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("client.SignOut: %w", err)
	}
	return nil
}

// GetUser returns the account behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	var u domain.User
	if err := c.doRequest(ctx, http.MethodGet, authPrefix+"/user", accessToken, nil, &u); err != nil {
		return nil, fmt.Errorf("client.GetUser: %w", err)
	}
	return &u, nil
}
