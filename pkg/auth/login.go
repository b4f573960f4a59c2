package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-attend/internal/httpc"
)

// ErrBadCredentials is returned when the backend rejects a login.
var ErrBadCredentials = errors.New("auth: incorrect username or password")

// Session is a successful login response.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

// LoginClient logs in against the backend's /auth/login endpoint.
type LoginClient struct {
	baseURL string
	http    *http.Client
	store   Store
}

// NewLoginClient creates a login client. Successful logins are saved to store.
func NewLoginClient(baseURL string, store Store, client *http.Client) *LoginClient {
	if client == nil {
		client = httpc.Client
	}
	return &LoginClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    client,
		store:   store,
	}
}

// Login exchanges credentials for a bearer token and stores it.
func (c *LoginClient) Login(ctx context.Context, username, password string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: login request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrBadCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			return nil, fmt.Errorf("auth: login failed (%d): %s", resp.StatusCode, e.Detail)
		}
		return nil, fmt.Errorf("auth: login failed (%d)", resp.StatusCode)
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("auth: decode login response: %w", err)
	}
	if s.AccessToken == "" {
		return nil, errors.New("auth: login response had no access token")
	}

	if c.store != nil {
		if err := c.store.Save(s.AccessToken); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Logout forgets the stored token. The backend keeps no session state.
func (c *LoginClient) Logout() error {
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}
