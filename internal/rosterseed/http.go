package rosterseed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client errors.
var (
	ErrUnauthorized = errors.New("admin code rejected")
	ErrNotAdmin     = errors.New("code does not belong to an admin")
	ErrConflict     = errors.New("already exists")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status   int      `json:"-"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems"`
	// Result is set on partial failures.
	Result json.RawMessage `json:"result,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	if len(e.Problems) > 0 {
		msg += " (" + strings.Join(e.Problems, "; ") + ")"
	}
	return msg
}

// Unwrap maps well-known statuses to the client sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	default:
		return nil
	}
}

// HTTPClient talks to the judging API with one bearer code.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func newHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// do sends body as JSON and decodes a 2xx answer into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

type caller struct {
	Role string `json:"role"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type signInResponse struct {
	Caller caller `json:"caller"`
	Token  string `json:"token"`
}

// planRow mirrors one row of the seed plan.
type planRow struct {
	TeamID   string `json:"teamId"`
	Name     string `json:"name"`
	TeamCode string `json:"teamCode"`
}

type seedResponse struct {
	DryRun  bool      `json:"dryRun"`
	Plan    []planRow `json:"plan"`
	Created []string  `json:"created"`
	Failed  []string  `json:"failed"`
}

type judgeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func (c *HTTPClient) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// signIn checks the code belongs to an admin and keeps the normalized token.
func (c *HTTPClient) signIn(ctx context.Context, code string) (caller, error) {
	var res signInResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/sign-in", map[string]string{"code": code}, &res); err != nil {
		return caller{}, err
	}
	if res.Caller.Role != "admin" {
		return res.Caller, ErrNotAdmin
	}
	c.token = res.Token
	return res.Caller, nil
}

func (c *HTTPClient) seedTeams(ctx context.Context, teams []Team, dryRun bool) (seedResponse, error) {
	var res seedResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/teams/seed", map[string]any{"teams": teams, "dryRun": dryRun}, &res)
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Result) > 0 {
		if jerr := json.Unmarshal(apiErr.Result, &res); jerr == nil {
			return res, nil
		}
	}
	return res, err
}

func (c *HTTPClient) createJudge(ctx context.Context, j Judge) (judgeResponse, error) {
	var res judgeResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/judges", j, &res)
	return res, err
}
