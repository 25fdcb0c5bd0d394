// Package api implements hub.RemoteAPI over HTTP: the preupload
// classification call, the LFS batch negotiation, pre-signed blob and part
// transfers, multipart completion, and the final commit POST.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hubsync/internal/hub"
	"hubsync/internal/retry"
)

// lfsBasicAuthUser is the fixed placeholder username of LFS batch requests;
// the real credential is the token sent as the password.
const lfsBasicAuthUser = "hubsync"

// Header keys the service uses for error reporting and request tracing.
const (
	headerErrorCode    = "X-Error-Code"
	headerErrorMessage = "X-Error-Message"
	headerRequestID    = "X-Request-Id"
)

// Config collects everything a Client needs. Endpoint, RepoID and Token are
// required; the rest defaults.
type Config struct {
	Endpoint string // service base URL, no trailing slash
	RepoID   string
	RepoType string // defaults to "model"
	Revision string // defaults to "main"
	Token    string

	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     hub.Logger
	IDGen      hub.IDGenerator
}

// Client talks to one repository at one revision.
type Client struct {
	endpoint string
	repoID   string
	repoType string
	revision string
	token    string

	http   *http.Client
	retry  retry.Policy
	logger hub.Logger
	idgen  hub.IDGenerator
}

// New creates a Client from cfg, filling in defaults.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hub.NewNopLogger()
	}
	var idgen hub.IDGenerator = cfg.IDGen
	if idgen == nil {
		idgen = hub.UUIDGenerator{}
	}
	repoType := cfg.RepoType
	if repoType == "" {
		repoType = "model"
	}
	revision := cfg.Revision
	if revision == "" {
		revision = "main"
	}

	pol := cfg.Retry
	if pol.ResetConnections == nil {
		// A connection-level failure must not reuse stale TLS/connection
		// state on the next attempt.
		pol.ResetConnections = httpClient.CloseIdleConnections
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		repoID:   cfg.RepoID,
		repoType: repoType,
		revision: revision,
		token:    cfg.Token,
		http:     httpClient,
		retry:    pol,
		logger:   logger,
		idgen:    idgen,
	}
}

// Revision returns the revision this client commits to.
func (c *Client) Revision() string { return c.revision }

// apiURL builds an /api/{repo_type}s/{repo_id}/... URL.
func (c *Client) apiURL(parts ...string) string {
	return fmt.Sprintf("%s/api/%ss/%s/%s", c.endpoint, c.repoType, c.repoID, strings.Join(parts, "/"))
}

// lfsBatchURL builds the Git LFS batch endpoint for the repository.
// Model repositories live at the root of the service namespace; other types
// are prefixed with their plural form.
func (c *Client) lfsBatchURL() string {
	prefix := ""
	if c.repoType != "model" {
		prefix = c.repoType + "s/"
	}
	return fmt.Sprintf("%s/%s%s.git/info/lfs/objects/batch", c.endpoint, prefix, c.repoID)
}

type authMode int

const (
	authNone   authMode = iota // pre-signed URLs carry their own authorization
	authBearer                 // regular API calls
	authBasic                  // LFS batch endpoint
)

// request describes one HTTP call to be executed under the retry policy.
type request struct {
	method string
	url    string
	body   io.ReadSeeker
	size   int64
	header map[string]string
	auth   authMode
}

// do executes req under the retry policy. The body cursor is captured before
// the first attempt and restored before every retry so resends are
// byte-identical. Responses with status >= 400 are decoded into a typed
// error; the caller owns the body of successful responses.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	var start int64
	if req.body != nil {
		pos, err := req.body.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("capturing body position: %w", err)
		}
		start = pos
	}
	requestID := c.idgen.New()

	resp, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		if req.body != nil {
			if _, err := req.body.Seek(start, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewinding body: %w", err)
			}
		}

		var body io.Reader
		if req.body != nil {
			body = req.body
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
		if err != nil {
			return nil, err
		}
		if req.body != nil {
			httpReq.ContentLength = req.size
		}
		httpReq.Header.Set(headerRequestID, requestID)
		for k, v := range req.header {
			httpReq.Header.Set(k, v)
		}
		switch req.auth {
		case authBearer:
			if c.token != "" {
				httpReq.Header.Set("Authorization", "Bearer "+c.token)
			}
		case authBasic:
			httpReq.SetBasicAuth(lfsBasicAuthUser, c.token)
		}

		return c.http.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.url, err)
	}

	if resp.StatusCode >= 400 {
		return nil, decodeErrorResponse(resp)
	}
	return resp, nil
}

// postJSON marshals in, POSTs it, and decodes the response into out (when out
// is non-nil).
func (c *Client) postJSON(ctx context.Context, url string, auth authMode, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		url:    url,
		body:   bytes.NewReader(raw),
		size:   int64(len(raw)),
		header: map[string]string{"Content-Type": "application/json"},
		auth:   auth,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &hub.ProtocolError{Msg: fmt.Sprintf("decoding response from %s: %v", url, err)}
	}
	return nil
}

// decodeErrorResponse maps a rejected response to a hub.RejectionError using
// the fixed error header keys, consuming and closing the body.
func decodeErrorResponse(resp *http.Response) error {
	defer resp.Body.Close()

	rej := &hub.RejectionError{
		StatusCode: resp.StatusCode,
		Code:       resp.Header.Get(headerErrorCode),
		Message:    resp.Header.Get(headerErrorMessage),
		RequestID:  resp.Header.Get(headerRequestID),
	}
	if rej.Message == "" {
		// Fall back to a well-defined body shape; anything else is left as
		// the bare status.
		var body struct {
			Error string `json:"error"`
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err == nil && json.Unmarshal(raw, &body) == nil {
			rej.Message = body.Error
		}
	}
	return rej
}
