package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	session "github.com/goliatone/go-auth-session"
)

var _ session.IdentityService = (*Client)(nil)

const (
	DefaultCurrentUserPath = "/api/auth/me"
	DefaultLogoutPath      = "/api/auth/logout"
	DefaultTimeout         = 10 * time.Second
)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (default has a 10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithCurrentUserPath overrides the fetch current user endpoint path.
func WithCurrentUserPath(path string) Option {
	return func(cl *Client) {
		if path != "" {
			cl.currentUserPath = path
		}
	}
}

// WithLogoutPath overrides the invalidate session endpoint path.
func WithLogoutPath(path string) Option {
	return func(cl *Client) {
		if path != "" {
			cl.logoutPath = path
		}
	}
}

// Client talks to the identity service over HTTP with bearer credentials.
//
//	GET  {base}/api/auth/me      -> 200 {"id","name","email",...}
//	POST {base}/api/auth/logout  -> 2xx
//
// A 401 whose error body says the token expired maps to
// session.ErrCredentialExpired, other 401/403 answers to
// session.ErrCredentialInvalid, and transport failures or 5xx answers to
// session.ErrIdentityUnreachable.
type Client struct {
	baseURL         string
	http            *http.Client
	currentUserPath string
	logoutPath      string
}

// NewClient creates a client for the identity service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: DefaultTimeout},
		currentUserPath: DefaultCurrentUserPath,
		logoutPath:      DefaultLogoutPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type userPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchCurrentUser implements session.IdentityService.
func (c *Client) FetchCurrentUser(ctx context.Context, credential session.Credential) (session.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.currentUserPath, credential)
	if err != nil {
		return session.User{}, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return session.User{}, unreachable(err, c.currentUserPath)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return session.User{}, statusError(res, c.currentUserPath)
	}

	var payload userPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return session.User{}, goerrors.Wrap(err, goerrors.CategoryOperation, "unable to decode current user").
			WithTextCode(session.TextCodeIdentityUnreachable).
			WithCode(http.StatusBadGateway)
	}

	name := payload.Name
	if name == "" {
		name = payload.Username
	}

	return session.User{
		ID:        payload.ID,
		Name:      name,
		Email:     payload.Email,
		AvatarURL: payload.AvatarURL,
		Role:      payload.Role,
	}, nil
}

// InvalidateSession implements session.IdentityService. An empty credential
// still calls the endpoint so cookie based sessions are cleared too.
func (c *Client) InvalidateSession(ctx context.Context, credential session.Credential) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.logoutPath, credential)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return unreachable(err, c.logoutPath)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	return statusError(res, c.logoutPath)
}

func (c *Client) newRequest(ctx context.Context, method, path string, credential session.Credential) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "identity: build request").
			WithTextCode(session.TextCodeIdentityUnreachable).
			WithMetadata(map[string]any{"path": path})
	}
	req.Header.Set("Accept", "application/json")
	if !credential.IsEmpty() {
		req.Header.Set("Authorization", "Bearer "+credential.Value())
	}
	return req, nil
}

func unreachable(err error, path string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service unreachable").
		WithTextCode(session.TextCodeIdentityUnreachable).
		WithCode(http.StatusBadGateway).
		WithMetadata(map[string]any{"path": path})
}

func statusError(res *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var payload errorPayload
	_ = json.Unmarshal(body, &payload)

	metadata := map[string]any{
		"path":   path,
		"status": res.StatusCode,
	}
	if payload.Error != "" {
		metadata["error"] = payload.Error
	}

	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if isExpiredPayload(payload) {
			return session.ErrCredentialExpired.Clone().WithMetadata(metadata)
		}
		return session.ErrCredentialInvalid.Clone().WithMetadata(metadata)
	default:
		return session.ErrIdentityUnreachable.Clone().WithMetadata(metadata)
	}
}

func isExpiredPayload(p errorPayload) bool {
	text := strings.ToLower(p.Error + " " + p.Message)
	return strings.Contains(text, "expired")
}
