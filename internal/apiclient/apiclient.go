package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/shopdash/internal/apiclient/config"
)

const requestIDHeader = "X-Request-Id"

// RemoteError is a non-2xx answer of the API.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Reason returns the message the server put into the error body.
func (e *RemoteError) Reason() string { return e.Message }

// JSON ответ API с ошибкой
type errorAnswer struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

type Client struct {
	http   *resty.Client
	zaplog *zap.Logger
}

func NewClient(cfg config.Config, zaplog *zap.Logger) (*Client, error) {
	baseURL, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{http: client, zaplog: zaplog}, nil
}

func (c *Client) List(ctx context.Context, token, resource string, out any) error {
	return c.do(ctx, http.MethodGet, token, collectionPath(resource), nil, out)
}

func (c *Client) Create(ctx context.Context, token, resource string, body, out any) error {
	return c.do(ctx, http.MethodPost, token, collectionPath(resource), body, out)
}

func (c *Client) Update(ctx context.Context, token, resource, id string, body, out any) error {
	return c.do(ctx, http.MethodPut, token, entityPath(resource, id), body, out)
}

func (c *Client) Delete(ctx context.Context, token, resource, id string) error {
	return c.do(ctx, http.MethodDelete, token, entityPath(resource, id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, token, path string, body, out any) error {
	reqID := uuid.NewString()

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(requestIDHeader, reqID)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.zaplog.Warn("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.zaplog.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("code", resp.StatusCode()),
		zap.Duration("duration", resp.Time()),
	)

	if !resp.IsSuccess() {
		remoteErr := &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode()}
		var answer errorAnswer
		if json.Unmarshal(resp.Body(), &answer) == nil {
			remoteErr.Message = answer.Msg
			if remoteErr.Message == "" {
				remoteErr.Message = answer.Message
			}
		}
		return remoteErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s %s: decode answer: %w", method, path, err)
	}
	return nil
}

func collectionPath(resource string) string {
	return "/" + url.PathEscape(resource)
}

func entityPath(resource, id string) string {
	return collectionPath(resource) + "/" + url.PathEscape(id)
}
