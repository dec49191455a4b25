// Package gemini is a focused client for the Gemini generateContent endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
	defaultTimeout = 30 * time.Second
)

// ErrMalformedResponse marks a 2xx reply that does not carry generated text
// at candidates[0].content.parts[0].text.
var ErrMalformedResponse = errors.New("gemini: malformed response")

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text *string `json:"text,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// KeySource supplies the API key.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a key read from configuration.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", errors.New("gemini: API key is empty")
	}
	return key, nil
}

// SecretGetter is satisfied by *paramstore.Client.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// ParamStoreKey resolves the key from Parameter Store on first use and keeps
// it for the lifetime of the process. Failed lookups are retried on the next
// call.
type ParamStoreKey struct {
	getter SecretGetter
	name   string

	mu  sync.Mutex
	key string
}

func NewParamStoreKey(getter SecretGetter, name string) (*ParamStoreKey, error) {
	if getter == nil {
		return nil, errors.New("gemini: secret getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("gemini: key parameter name must not be empty")
	}
	return &ParamStoreKey{getter: getter, name: name}, nil
}

func (p *ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != "" {
		return p.key, nil
	}
	key, err := p.getter.GetSecret(ctx, p.name)
	if err != nil {
		return "", fmt.Errorf("gemini: resolve API key: %w", err)
	}
	p.key = key
	return key, nil
}

// Client calls generateContent once per request. There is no retry.
type Client struct {
	http  *resty.Client
	keys  KeySource
	model string
}

type Option func(*resty.Client, *Client)

func WithBaseURL(baseURL string) Option {
	return func(r *resty.Client, _ *Client) {
		if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
			r.SetBaseURL(baseURL)
		}
	}
}

func WithModel(model string) Option {
	return func(_ *resty.Client, c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *resty.Client, _ *Client) {
		if d > 0 {
			r.SetTimeout(d)
		}
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("gemini: key source must not be nil")
	}
	r := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(defaultTimeout)
	c := &Client{http: r, keys: keys, model: DefaultModel}
	for _, opt := range opts {
		opt(r, c)
	}
	return c, nil
}

// GenerateText sends prompt as a single user part and returns the first
// candidate's first text part.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", key).
		SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: &prompt}}}}}).
		Post(fmt.Sprintf("/models/%s:generateContent", c.model))
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	if !resp.IsSuccess() {
		body := resp.String()
		if len(body) > 4096 {
			body = body[:4096]
		}
		return "", &HTTPStatusError{StatusCode: resp.StatusCode(), Body: body}
	}

	var payload generateResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	text, ok := firstText(payload)
	if !ok {
		return "", fmt.Errorf("%w: no text at candidates[0].content.parts[0]", ErrMalformedResponse)
	}
	return text, nil
}

func firstText(r generateResponse) (string, bool) {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return "", false
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", false
	}
	return *parts[0].Text, true
}
