// Package subgraph is the typed, cached read layer over the protocol's
// GraphQL indexer.
package subgraph

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

// ErrNotFound is returned by single-entity queries when the indexer has no
// such entity (yet).
var ErrNotFound = errors.New("not found")

// Fetcher executes one GraphQL document and returns the raw `data` object.
type Fetcher interface {
	Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// Client is a GraphQL-over-HTTP client for the subgraph endpoint.
type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient creates a client for the given endpoint.
func NewClient(url string) *Client {
	return &Client{
		URL:  url,
		HTTP: &http.Client{Timeout: 30 * time.Second},
	}
}

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// StatusError is a non-2xx HTTP response from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subgraph HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrorCode exposes the HTTP status so the error parser can classify
// gateway failures as network errors.
func (e *StatusError) ErrorCode() int { return e.StatusCode }

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Do posts the query and returns the data object.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var out gqlResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Errors) > 0 {
		gerr := &GraphQLError{}
		for _, e := range out.Errors {
			gerr.Messages = append(gerr.Messages, e.Message)
		}
		return nil, gerr
	}
	return out.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
