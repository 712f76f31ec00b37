// Package client talks to a running sweer server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sweer/internal/entity"
	"sweer/internal/ports"
	"time"

	"gopkg.in/guregu/null.v3"
)

var _ ports.Controller = (*Client)(nil)

// TransportError means no valid envelope came back: the server is down,
// answered with a non-200 status, or sent something that is not JSON.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("communicate with backend: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError carries the message of an error envelope.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method string, endpoint string, body any, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reader)
	if err != nil {
		return &TransportError{Err: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var envelope entity.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &TransportError{Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}

	if envelope.Status == entity.StatusError {
		return &APIError{Message: envelope.Message}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Err: fmt.Errorf("decode %s response: %w", endpoint, err)}
	}

	return nil
}

func (c *Client) simple(ctx context.Context, method string, endpoint string, body any) (*entity.Response, error) {
	var resp entity.Response
	if err := c.do(ctx, method, endpoint, body, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) Info(ctx context.Context) (*entity.Response, error) {
	return c.simple(ctx, http.MethodGet, "info", nil)
}

func (c *Client) Open(ctx context.Context, url string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "open", entity.OpenRequest{URL: null.StringFrom(url)})
}

func (c *Client) Close(ctx context.Context) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "close", nil)
}

func (c *Client) Screenshot(ctx context.Context) (*entity.ScreenshotResponse, error) {
	var resp entity.ScreenshotResponse
	if err := c.do(ctx, http.MethodGet, "screenshot", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) Click(ctx context.Context, selector string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "click", entity.ClickRequest{Selector: null.StringFrom(selector)})
}

func (c *Client) Type(ctx context.Context, selector string, text string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "type", entity.TypeRequest{
		Selector: null.StringFrom(selector),
		Text:     null.StringFrom(text),
	})
}

func (c *Client) Scroll(ctx context.Context, direction string, amount int64) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "scroll", entity.ScrollRequest{
		Direction: null.StringFrom(direction),
		Amount:    null.IntFrom(amount),
	})
}

func (c *Client) GetText(ctx context.Context, selector string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "get_text", entity.SelectorRequest{Selector: null.StringFrom(selector)})
}

func (c *Client) GetAttribute(ctx context.Context, selector string, attribute string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "get_attribute", entity.AttributeRequest{
		Selector:  null.StringFrom(selector),
		Attribute: null.StringFrom(attribute),
	})
}

func (c *Client) ExecuteScript(ctx context.Context, script string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "execute_script", entity.ScriptRequest{Script: null.StringFrom(script)})
}

func (c *Client) Navigate(ctx context.Context, direction string) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "navigate", entity.NavigateRequest{Direction: null.StringFrom(direction)})
}

func (c *Client) Reload(ctx context.Context) (*entity.Response, error) {
	return c.simple(ctx, http.MethodPost, "reload", nil)
}

func (c *Client) ListElements(ctx context.Context, selector string) (*entity.ElementsResponse, error) {
	var resp entity.ElementsResponse
	if err := c.do(ctx, http.MethodPost, "list_elements", entity.SelectorRequest{Selector: null.StringFrom(selector)}, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
