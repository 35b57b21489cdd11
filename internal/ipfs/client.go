package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client talks to an IPFS HTTP API for writes and a gateway for reads.
type Client struct {
	APIURL     string
	GatewayURL string
	// Auth is sent verbatim as the Authorization header when set.
	Auth string
	HTTP *http.Client
}

// NewClient creates a client. An empty gateway reads through the API node.
func NewClient(apiURL, gatewayURL string) *Client {
	if gatewayURL == "" {
		gatewayURL = apiURL
	}
	return &Client{
		APIURL:     strings.TrimRight(apiURL, "/"),
		GatewayURL: strings.TrimRight(gatewayURL, "/"),
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put adds and pins data, returning its CIDv0.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("create form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"/api/v0/add?pin=true&cid-version=0", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out addResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	return NormalizeCID(out.Hash)
}

// Get fetches id through the gateway.
func (c *Client) Get(ctx context.Context, id string) ([]byte, error) {
	norm, err := NormalizeCID(id)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL+"/ipfs/"+norm, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.Auth != "" {
		req.Header.Set("Authorization", c.Auth)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
