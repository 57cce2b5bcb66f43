package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yubzen/playground/internal/logging"
)

const (
	defaultConnectionsPath = "/api/trpc/llmApiKey.all"
	defaultCreatePath      = "/api/trpc/llmApiKey.create"
	defaultChatPath        = "/api/chatCompletion"

	// ChatFailedMessage is used when a failed chat response carries no message.
	ChatFailedMessage = "Chat failed"
	// UnauthorizedMessage describes a rejected discovery session.
	UnauthorizedMessage = "401 Unauthorized: check the login session cookie, project membership or proxy settings"

	streamReadSize = 4096
)

// Options configures a Client. Zero values fall back to the defaults of
// the chat backend.
type Options struct {
	BaseURL         string
	ConnectionsPath string
	CreatePath      string
	ChatPath        string
	// SessionCookie names the cookie carrying Session.
	SessionCookie string
	Session       string
	// Timeout bounds discovery and connection creation. Chat calls are
	// unbounded.
	Timeout time.Duration
	// Retries is the number of extra discovery attempts on transient
	// failures.
	Retries       int
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Client talks to the playground backend.
type Client struct {
	opts Options
	http *http.Client
}

func NewClient(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.ConnectionsPath == "" {
		opts.ConnectionsPath = defaultConnectionsPath
	}
	if opts.CreatePath == "" {
		opts.CreatePath = defaultCreatePath
	}
	if opts.ChatPath == "" {
		opts.ChatPath = defaultChatPath
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.SessionCookie != "" && c.opts.Session != "" {
		req.AddCookie(&http.Cookie{Name: c.opts.SessionCookie, Value: c.opts.Session})
	}
	return req, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	b.MaxInterval = 8 * c.opts.RetryInterval
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.Retries)), ctx)
}

// Discover lists the connections of projectID. Transient failures (network
// errors, 5xx) are retried; a 401 yields *AuthError and other non-success
// statuses *RequestError. Cancelling ctx aborts the request and any retry.
func (c *Client) Discover(ctx context.Context, projectID string) ([]Connection, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	input, err := json.Marshal(map[string]any{"json": map[string]string{"projectId": projectID}})
	if err != nil {
		return nil, err
	}
	path := c.opts.ConnectionsPath + "?input=" + url.QueryEscape(string(input))

	var conns []Connection
	op := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("load LLM connections: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("read LLM connections: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(&AuthError{Status: resp.StatusCode, Msg: UnauthorizedMessage})
		case resp.StatusCode >= 500:
			return &RequestError{Status: resp.StatusCode, Msg: fmt.Sprintf("Failed to load LLM connections (%d)", resp.StatusCode)}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return backoff.Permanent(&RequestError{Status: resp.StatusCode, Msg: fmt.Sprintf("Failed to load LLM connections (%d)", resp.StatusCode)})
		}

		payload, err := UnwrapEnvelope(body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("decode LLM connections: %w", err))
		}
		conns, err = decodeConnections(payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn().Err(err).Str("project", projectID).Dur("retry_in", wait).Msg("connection discovery failed, retrying")
	}
	if err := backoff.RetryNotify(op, c.newRetryBackoff(ctx), notify); err != nil {
		return nil, err
	}
	return conns, nil
}

// CreateConnection saves a new connection for projectID.
func (c *Client) CreateConnection(ctx context.Context, projectID string, in NewConnection) (Connection, error) {
	if err := in.Validate(); err != nil {
		return Connection{}, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	payload := struct {
		ProjectID string `json:"projectId"`
		NewConnection
	}{ProjectID: projectID, NewConnection: in}
	body, err := json.Marshal(map[string]any{"json": payload})
	if err != nil {
		return Connection{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.opts.CreatePath, body)
	if err != nil {
		return Connection{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Connection{}, fmt.Errorf("create LLM connection: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Connection{}, fmt.Errorf("read create response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return Connection{}, &AuthError{Status: resp.StatusCode, Msg: UnauthorizedMessage}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := Clean(errorMessage(raw))
		if msg == "" {
			msg = fmt.Sprintf("Failed to create LLM connection (%d)", resp.StatusCode)
		}
		return Connection{}, &RequestError{Status: resp.StatusCode, Msg: msg}
	}

	created := Connection{
		ProjectID:         projectID,
		Provider:          in.Provider,
		Adapter:           in.Adapter,
		BaseURL:           in.BaseURL,
		CustomModels:      in.CustomModels,
		WithDefaultModels: in.WithDefaultModels,
	}
	if unwrapped, err := UnwrapEnvelope(raw); err == nil {
		var echoed Connection
		if json.Unmarshal(unwrapped, &echoed) == nil && echoed.ID != "" {
			created = echoed
		}
	}
	logging.Info().Str("project", projectID).Str("provider", created.Provider).Str("adapter", created.Adapter).Msg("LLM connection created")
	return created, nil
}

// Complete performs a buffered chat call. A JSON response is returned
// verbatim; any other content type is returned as text.
func (c *Client) Complete(ctx context.Context, in ChatRequest) (Output, error) {
	in.Streaming = false
	resp, err := c.postChat(ctx, in)
	if err != nil {
		return Output{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("read chat response: %w", err)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		raw = bytes.TrimSpace(raw)
		if !json.Valid(raw) {
			return Output{}, fmt.Errorf("decode chat response: invalid JSON")
		}
		return Output{JSON: json.RawMessage(raw)}, nil
	}
	return TextOutput(DecodeAll(raw)), nil
}

// Stream performs a streamed chat call. onText is called once with "" when
// the response is accepted, then with each decoded piece of the body in
// arrival order. The body is passed through verbatim; no framing is
// interpreted. Stream returns when the body ends, ctx is cancelled or
// onText returns an error.
func (c *Client) Stream(ctx context.Context, in ChatRequest, onText func(string) error) error {
	in.Streaming = true
	resp, err := c.postChat(ctx, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := onText(""); err != nil {
		return err
	}
	dec := NewStreamDecoder()
	buf := make([]byte, streamReadSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				if err := onText(text); err != nil {
					return err
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read chat stream: %w", readErr)
		}
	}
	if tail := dec.Flush(); tail != "" {
		return onText(tail)
	}
	return nil
}

func (c *Client) postChat(ctx context.Context, in ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.opts.ChatPath, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		msg := Clean(errorMessage(raw))
		if msg == "" {
			msg = ChatFailedMessage
		}
		return nil, &RequestError{Status: resp.StatusCode, Msg: msg}
	}
	if in.Streaming && (resp.Body == nil || resp.Body == http.NoBody) {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &RequestError{Status: resp.StatusCode, Msg: ChatFailedMessage}
	}
	return resp, nil
}
