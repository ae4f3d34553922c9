// Package rest implements the session gateway against the dainage server's
// REST API. It is the remote strategy; the in-memory gateway is the local
// one. HTTP failures are classified into the domain error taxonomy so the
// session store can tell "no active session" from "could not determine".
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"dainage/internal/api"
	"dainage/internal/domain"
	"dainage/internal/ports"
)

// Client talks to the dainage server API v1.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, token string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*api.TokenResponse, error) {
	var out api.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DemoLogin issues a token for the seeded demo account.
func (c *Client) DemoLogin(ctx context.Context) (*api.TokenResponse, error) {
	var out api.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/demo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActiveSession returns the caller's running entry, or nil when there is
// none. The server encodes "none" as a JSON null with status 200.
func (c *Client) GetActiveSession(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	var out *api.EntryPayload
	if err := c.do(ctx, http.MethodGet, "/api/v1/time-entries/active", nil, &out); err != nil {
		return nil, err
	}
	return api.PayloadToEntry(out), nil
}

func (c *Client) StartSession(ctx context.Context, req ports.StartRequest) (*domain.TimeEntry, error) {
	body := api.StartSessionRequest{
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		Tags:        req.Tags,
	}
	var out api.EntryPayload
	if err := c.do(ctx, http.MethodPost, "/api/v1/time-entries/start", body, &out); err != nil {
		return nil, err
	}
	return api.PayloadToEntry(&out), nil
}

// StopSession closes the entry. The server scopes the operation to the
// token's user, so userID is not sent on the wire.
func (c *Client) StopSession(ctx context.Context, userID, entryID string) (*domain.TimeEntry, error) {
	var out api.EntryPayload
	p := fmt.Sprintf("/api/v1/time-entries/%s/stop", url.PathEscape(entryID))
	if err := c.do(ctx, http.MethodPost, p, nil, &out); err != nil {
		return nil, err
	}
	return api.PayloadToEntry(&out), nil
}

func (c *Client) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	var raw []api.ProjectPayload
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(raw))
	for i := range raw {
		out = append(out, *api.PayloadToProject(&raw[i]))
	}
	return out, nil
}

func (c *Client) CreateProject(ctx context.Context, userID, name, color string) (*domain.Project, error) {
	var out api.ProjectPayload
	body := api.CreateProjectRequest{Name: name, Color: color}
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", body, &out); err != nil {
		return nil, err
	}
	return api.PayloadToProject(&out), nil
}

func (c *Client) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]domain.TimeEntry, error) {
	p := fmt.Sprintf("/api/v1/time-entries?from=%s&to=%s",
		url.QueryEscape(from.Format(time.RFC3339)), url.QueryEscape(to.Format(time.RFC3339)))
	var raw []api.EntryPayload
	if err := c.do(ctx, http.MethodGet, p, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.TimeEntry, 0, len(raw))
	for i := range raw {
		out = append(out, *api.PayloadToEntry(&raw[i]))
	}
	return out, nil
}

// do issues one request and decodes the JSON response into out (when out is
// non-nil). Non-2xx statuses are classified into the domain taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGateway, err)
	}
	return nil
}

func classifyStatus(status int, body []byte) error {
	var kind error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrAuthRequired
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusConflict:
		kind = domain.ErrConflict
	default:
		kind = domain.ErrGateway
	}
	return fmt.Errorf("%w: unexpected status %d: %s", kind, status, string(body))
}
