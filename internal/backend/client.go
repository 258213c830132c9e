// Package backend is the HTTP/WebSocket client for the remote vest backend.
// All network errors are returned as values; nothing here panics on a bad
// response.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"vitalvest/internal/sensor"
)

const defaultTimeout = 10 * time.Second

// ErrBadCredentials is the backend's rejection message, verbatim from its
// contract.
const ErrBadCredentials = "Credenciales incorrectas"

// Client talks to the backend REST API. The auth token is shared by all
// callers and may be set at any time; it takes effect on the next request.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken stores the bearer token used on subsequent requests. An empty
// token means requests go out without an Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently stored bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User is one backend user record.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// LoginResult is the structured outcome of a credential exchange. A rejected
// login is a result, not an error; errors are reserved for transport
// failures.
type LoginResult struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Login exchanges credentials against POST /login/. The backend answers with
// an array whose first element is the user record; an empty array or a
// non-2xx status means the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login/", bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return LoginResult{Success: false, Error: ErrBadCredentials}, nil
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return LoginResult{}, fmt.Errorf("decode login response: %w", err)
	}
	if len(users) == 0 {
		return LoginResult{Success: false, Error: ErrBadCredentials}, nil
	}
	u := users[0]
	return LoginResult{Success: true, User: &u}, nil
}

// FetchBME returns the environment history from GET /bme.
func (c *Client) FetchBME(ctx context.Context) ([]sensor.BMERecord, error) {
	var env struct {
		BME []sensor.BMERecord `json:"BME"`
	}
	if err := c.getJSON(ctx, "/bme", &env); err != nil {
		return nil, err
	}
	return env.BME, nil
}

// FetchGSR returns the skin-response history from GET /gsr.
func (c *Client) FetchGSR(ctx context.Context) ([]sensor.GSRRecord, error) {
	var env struct {
		GSR []sensor.GSRRecord `json:"GSR"`
	}
	if err := c.getJSON(ctx, "/gsr", &env); err != nil {
		return nil, err
	}
	return env.GSR, nil
}

// FetchMLX returns the body-temperature history from GET /mlx.
func (c *Client) FetchMLX(ctx context.Context) ([]sensor.MLXRecord, error) {
	var env struct {
		MLX []sensor.MLXRecord `json:"MLX"`
	}
	if err := c.getJSON(ctx, "/mlx", &env); err != nil {
		return nil, err
	}
	return env.MLX, nil
}

// FetchMPU returns the motion history from GET /mpu.
func (c *Client) FetchMPU(ctx context.Context) ([]sensor.MPURecord, error) {
	var env struct {
		MPU []sensor.MPURecord `json:"MPU"`
	}
	if err := c.getJSON(ctx, "/mpu", &env); err != nil {
		return nil, err
	}
	return env.MPU, nil
}

// FetchUsers returns the user listing from GET /users.
func (c *Client) FetchUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getJSON(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// WSStatus is the backend's report on its own streaming endpoint.
type WSStatus struct {
	ClientsConnected int `json:"clients_connected"`
}

// FetchWSStatus returns GET /ws-status.
func (c *Client) FetchWSStatus(ctx context.Context) (WSStatus, error) {
	var st WSStatus
	err := c.getJSON(ctx, "/ws-status", &st)
	return st, err
}

// PostReading creates one record on the given sensor path (/bme, /gsr, /mlx
// or /mpu). Requires a stored bearer token.
func (c *Client) PostReading(ctx context.Context, path string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
// Non-2xx statuses (401 included) are returned as errors; the caller decides
// whether that degrades one sensor or the whole operation.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode body: %w", path, err)
	}
	return nil
}

// authorize attaches the bearer token if one is stored. Requests without a
// token still go out; the backend answers 401 and the caller degrades.
func (c *Client) authorize(req *http.Request) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
