package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/session"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Endpoint describes one backend operation. Header names are configurable per
// endpoint because operators mount the platform behind different gateways.
type Endpoint struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	RequiresAuth  bool
	SessionHeader string // defaults to DefaultSessionHeader
	UserHeader    string // empty = no user header attached

	Timeout time.Duration // 0 = client-wide timeout
}

// Do performs the endpoint call and decodes the response into T.
//
// Error handling: the response status code is the sole driver of
// classification. A 401/403 on an authenticated endpoint triggers exactly one
// forced session refresh and one retry; everything else surfaces unmodified.
func Do[T any](ctx context.Context, c *Client, ep Endpoint) (T, error) {
	var zero T

	forcedRefresh := false
	for {
		body, err := c.perform(ctx, ep, forcedRefresh)
		if err != nil {
			se := transport.AsServiceError(err)
			if se.IsAuthExpired() && ep.RequiresAuth && !forcedRefresh {
				forcedRefresh = true
				c.logger.Debug("auth expired, retrying with forced refresh", "path", ep.Path)
				continue
			}
			return zero, se
		}

		if len(body) == 0 {
			return zero, nil
		}
		var result T
		if err := json.Unmarshal(body, &result); err != nil {
			return zero, transport.DecodingError(fmt.Errorf("decode %s response: %w", ep.Path, err))
		}
		return result, nil
	}
}

// perform does one HTTP round trip and returns the raw success body.
func (c *Client) perform(ctx context.Context, ep Endpoint, forceRefresh bool) ([]byte, error) {
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	fullURL := c.baseURL + ep.Path
	if len(ep.Query) > 0 {
		fullURL += "?" + ep.Query.Encode()
	}

	var bodyBytes []byte
	var bodyReader io.Reader
	if ep.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(ep.Body)
		if err != nil {
			return nil, transport.InvalidRequestError(fmt.Sprintf("encode %s body: %v", ep.Path, err))
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, fullURL, bodyReader)
	if err != nil {
		return nil, transport.InvalidRequestError(err.Error())
	}

	req.Header.Set("Accept", "application/json")
	if ep.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if ep.RequiresAuth {
		if err := c.attachAuth(ctx, req, ep, forceRefresh); err != nil {
			return nil, err
		}
	}

	// Every outbound request is logged with its resolved headers and body.
	c.logger.Debug("outbound request",
		"method", ep.Method,
		"url", fullURL,
		"headers", req.Header,
		"body", string(bodyBytes),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.state.Publish(transport.StateDisconnected)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &transport.ServiceError{Kind: transport.ErrNoNetworkConnection, Message: "request timeout"}
		}
		return nil, transport.NetworkError(err)
	}
	defer resp.Body.Close()
	c.state.Publish(transport.StateConnected)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.NetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := transport.ClassifyStatus(resp.StatusCode, respBody)
		c.logger.Debug("request failed",
			"method", ep.Method,
			"path", ep.Path,
			"status", resp.StatusCode,
			"kind", se.Kind,
		)
		return nil, se
	}

	return respBody, nil
}

// attachAuth resolves a valid session and sets the endpoint's auth headers.
func (c *Client) attachAuth(ctx context.Context, req *http.Request, ep Endpoint, forceRefresh bool) error {
	if c.coordinator == nil {
		return transport.InvalidRequestError(fmt.Sprintf("endpoint %s requires auth but client has no session coordinator", ep.Path))
	}

	sess, err := c.coordinator.ValidSession(ctx, forceRefresh)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNetworkUnavailable):
			return transport.NetworkError(err)
		default:
			// Rejected credentials and the anonymous state both surface as
			// the canonical requires-login error.
			return &transport.ServiceError{Kind: transport.ErrUnauthorized, Message: err.Error()}
		}
	}

	header := ep.SessionHeader
	if header == "" {
		header = DefaultSessionHeader
	}
	req.Header.Set(header, sess.SessionID)
	if ep.UserHeader != "" && sess.UserID != "" {
		req.Header.Set(ep.UserHeader, sess.UserID)
	}
	return nil
}
