// Package platform is the client for the financing platform's REST API. The
// platform owns clients, sales, inventory, contracts and payments; this
// service only drives them.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed service token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse platform base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("platform base url must be absolute, got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}, nil
}

// envelope is the wrapper some endpoints use. Endpoints that answer with a
// bare object leave every field empty and the whole body is the payload.
type envelope struct {
	Success *bool                      `json:"success"`
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Data    json.RawMessage            `json:"data"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("platform token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		log.Printf("[platform] ERROR: %s %s network failure: %v", method, path, err)
		return &APIError{Method: method, Path: path, Network: true, FriendlyMessage: NetworkMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Method: method, Path: path, Network: true, FriendlyMessage: NetworkMessage, Err: err}
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '{' {
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp.StatusCode, env)
		logFailure(apiErr)
		return apiErr
	}
	if (env.Success != nil && !*env.Success) || strings.EqualFold(env.Status, "error") {
		apiErr := newAPIError(method, path, resp.StatusCode, env)
		log.Printf("[platform] WARN: %s %s reported failure: %s", method, path, UserMessage(apiErr))
		return apiErr
	}

	if out == nil {
		return nil
	}
	payload := raw
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		payload = env.Data
	} else if env.Success != nil {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func newAPIError(method, path string, status int, env envelope) *APIError {
	message := strings.TrimSpace(env.Message)
	if message == "" {
		message = strings.TrimSpace(env.Error)
	}
	return &APIError{
		Status:          status,
		Method:          method,
		Path:            path,
		FriendlyMessage: FriendlyMessage(status),
		Message:         message,
		Errors:          decodeFieldErrors(env.Errors),
	}
}

func logFailure(err *APIError) {
	switch {
	case err.Status == http.StatusUnauthorized:
		log.Printf("[platform] WARN: %s %s unauthorized", err.Method, err.Path)
	case err.Status >= 500:
		log.Printf("[platform] ERROR: %s %s status=%d: %s", err.Method, err.Path, err.Status, UserMessage(err))
	default:
		log.Printf("[platform] INFO: %s %s status=%d: %s", err.Method, err.Path, err.Status, UserMessage(err))
	}
}
