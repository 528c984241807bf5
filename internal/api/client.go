// Package api is the REST transport to the Heremarket backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"storefront/internal/apperr"
)

// TokenSource returns the bearer token for calls made on behalf of the
// current session, or "" when there is none.
type TokenSource func() string

type Client struct {
	http  *resty.Client
	token TokenSource
	log   *slog.Logger
}

func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:  httpClient,
		token: func() string { return "" },
		log:   log,
	}
}

// SetTokenSource wires the session's access token into address and order
// calls.
func (c *Client) SetTokenSource(src TokenSource) {
	if src == nil {
		src = func() string { return "" }
	}
	c.token = src
}

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func (b errorBody) details() []string {
	if len(b.Details) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(b.Details, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(b.Details, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	out     any
	query   map[string]string
	headers map[string]string
	// overrides the taxonomy member for specific statuses
	kinds map[int]error
}

func (c *Client) do(ctx context.Context, cl call) error {
	req := c.http.R().SetContext(ctx)
	if cl.token != "" {
		req.SetAuthToken(cl.token)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	for k, v := range cl.headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		c.log.Warn("request failed",
			slog.String("method", cl.method),
			slog.String("path", cl.path),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s %s: %w: %w", cl.method, cl.path, apperr.ErrRemoteUnavailable, err)
	}

	if resp.IsError() {
		remote := remoteError(resp.StatusCode(), resp.Body(), cl.kinds)
		c.log.Info("request rejected",
			slog.String("method", cl.method),
			slog.String("path", cl.path),
			slog.Int("status", remote.Status),
			slog.String("error", remote.Message))
		return fmt.Errorf("%s %s: %w", cl.method, cl.path, remote)
	}

	if cl.out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", cl.method, cl.path, err)
	}
	return nil
}

func remoteError(status int, body []byte, kinds map[int]error) *apperr.RemoteError {
	remote := &apperr.RemoteError{Status: status, Kind: apperr.KindForStatus(status)}
	if kind, ok := kinds[status]; ok {
		remote.Kind = kind
	}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		remote.Message = eb.Error
		remote.Details = eb.details()
	}
	if remote.Message == "" {
		remote.Message = http.StatusText(status)
	}
	return remote
}

// IsUnauthorized reports whether err is a 401 answer from the backend.
func IsUnauthorized(err error) bool {
	var remote *apperr.RemoteError
	return errors.As(err, &remote) && remote.Status == http.StatusUnauthorized
}
