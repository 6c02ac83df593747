// Package account implements the client side of the account API: form
// posts to the register and login endpoints, and terminal prompts.
package account

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	apiRegister = "/account/register"
	apiLogin    = "/account/login"
)

// FieldError is one entry of the error list the server returns for a
// rejected registration.
type FieldError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ResponseError is returned when the server rejects a request.
type ResponseError struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func (e *ResponseError) Error() string {
	if len(e.Errors) > 0 {
		descs := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			descs = append(descs, fe.Description)
		}
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, strings.Join(descs, " "))
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the account API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. When caPath is set
// the server certificate must chain to that CA. Redirects are never
// followed so a successful login can be observed.
func NewClient(baseURL, caPath string) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caPath != "" {
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Register creates an account and returns the server's confirmation.
func (c *Client) Register(ctx context.Context, username, email string, password, confirm []byte) (string, error) {
	form := url.Values{
		"UserName":        {username},
		"Email":           {email},
		"Password":        {string(password)},
		"ConfirmPassword": {string(confirm)},
	}
	resp, err := c.post(ctx, apiRegister, form)
	if err != nil {
		return "", fmt.Errorf("register failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readResponseError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), nil
}

// Login authenticates with the server. field is the form field that carries
// identifier ("Email" or "UserName"). On success the redirect target is
// returned.
func (c *Client) Login(ctx context.Context, field, identifier string, password []byte) (string, error) {
	form := url.Values{
		field:      {identifier},
		"Password": {string(password)},
	}
	resp, err := c.post(ctx, apiLogin, form)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", readResponseError(resp)
	}
	return resp.Header.Get("Location"), nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.http.Do(req)
}

func readResponseError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	rerr := &ResponseError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(data, &rerr.Errors)
	}
	return rerr
}
