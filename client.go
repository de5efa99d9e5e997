package keygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient talks to a keygate server over its JSON API
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the server at baseURL. A nil
// httpClient uses http.DefaultClient.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type challengeRequest struct {
	Address string `json:"address"`
}

type verifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Challenge requests a message for address to sign
func (c *HTTPClient) Challenge(ctx context.Context, address string) (*Challenge, error) {
	var challenge Challenge
	if err := c.do(ctx, http.MethodPost, "/auth/challenge", "", challengeRequest{Address: address}, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// Verify submits a signed challenge and returns a session credential
func (c *HTTPClient) Verify(ctx context.Context, message, signature string) (*Credential, error) {
	var credential Credential
	req := verifyRequest{Message: message, Signature: signature}
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", req, &credential); err != nil {
		return nil, err
	}
	return &credential, nil
}

// Login runs Challenge and Verify with signer
func (c *HTTPClient) Login(ctx context.Context, signer Signer) (*Credential, error) {
	challenge, err := c.Challenge(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	signature, err := signer.SignMessage([]byte(challenge.Message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}
	return c.Verify(ctx, challenge.Message, signature)
}

// Me returns the address a credential was issued to
func (c *HTTPClient) Me(ctx context.Context, credential string) (string, error) {
	var me struct {
		Address string `json:"address"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", credential, nil, &me); err != nil {
		return "", err
	}
	return me.Address, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, credential string, body, out any) error {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Kind: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
