// Package shipyaarihttp talks to the Shipyaari aggregator API. The login
// token lives on the client with its expiry, guarded by a mutex, so there is
// no process-global credential state and tests can construct isolated clients.
package shipyaarihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pinecart/shipsync/internal/integrations/carrier"
)

const tokenLifetime = 9 * 24 * time.Hour // carrier tokens last 10 days, renew a day early

type Client struct {
	baseURL  string
	email    string
	password string
	httpc    *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(baseURL, email, password string) *Client {
	if baseURL == "" {
		baseURL = "https://api.shipyaari.example"
	}
	return &Client{
		baseURL:  baseURL,
		email:    email,
		password: password,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type loginResp struct {
	Token string `json:"token"`
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "new login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do login request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("shipyaari login http %d", resp.StatusCode)
	}

	var lr loginResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", errors.Wrap(err, "decode login response")
	}
	if lr.Token == "" {
		return "", errors.New("shipyaari login returned empty token")
	}

	c.token = lr.Token
	c.tokenExp = time.Now().Add(tokenLifetime)
	return c.token, nil
}

func (c *Client) FetchTracking(ctx context.Context, id carrier.Identifier) (json.RawMessage, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/tracking"
	q := u.Query()
	q.Set(string(id.Kind), id.Value)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// token revoked server-side; drop it so the next call re-logins
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("shipyaari unauthorized")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("shipyaari rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("shipyaari http %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return json.RawMessage(b), nil
}
