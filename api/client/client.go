// Package client is a Go client for the docqa HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/docqa/api"
	"github.com/papercomputeco/docqa/pkg/answer"
)

// APIError is a non-200 reply from the docqa API.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("docqa API returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docqa API returned HTTP %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// Client calls a docqa API server.
type Client struct {
	target     string
	httpClient *http.Client
}

// New creates a Client for the server at target.
func New(target string) *Client {
	return &Client{
		target:     strings.TrimRight(target, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Banner fetches the service banner from GET /.
func (c *Client) Banner(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Ask posts question to /ask.
func (c *Client) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	body, err := json.Marshal(api.AskRequest{Question: &question})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/ask", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out answer.Answer
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach docqa API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body api.ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Kind = body.Kind
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
