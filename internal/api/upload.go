package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"hubsync/internal/hub"
)

// UploadBlob performs a single-shot transfer: one PUT of the whole content to
// the action's pre-signed URL. Headers from the action are forwarded
// verbatim; the URL itself carries the authorization.
func (c *Client) UploadBlob(ctx context.Context, action *hub.UploadAction, content io.ReadSeeker, size int64) error {
	resp, err := c.do(ctx, request{
		method: http.MethodPut,
		url:    action.Href,
		body:   content,
		size:   size,
		header: action.Header,
		auth:   authNone,
	})
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// UploadPart PUTs one chunk to its pre-signed part URL and returns the ETag
// the storage backend assigned. A missing ETag makes the completion call
// impossible, so it is a protocol error.
func (c *Client) UploadPart(ctx context.Context, url string, chunk io.ReadSeeker, size int64) (string, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPut,
		url:    url,
		body:   chunk,
		size:   size,
		auth:   authNone,
	})
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", &hub.ProtocolError{Msg: fmt.Sprintf("part PUT to %s returned no ETag", url)}
	}
	return etag, nil
}
