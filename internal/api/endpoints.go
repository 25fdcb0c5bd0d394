package api

import (
	"context"
	"encoding/base64"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"

	"hubsync/internal/hub"
)

// Preupload implements the classification round trip:
// POST /api/{repo_type}s/{repo_id}/preupload/{revision}.
func (c *Client) Preupload(ctx context.Context, files []hub.PreuploadFile) ([]hub.PreuploadResult, error) {
	reqBody := struct {
		Files []hub.PreuploadFile `json:"files"`
	}{Files: files}
	var respBody struct {
		Files []hub.PreuploadResult `json:"files"`
	}

	url := c.apiURL("preupload", c.revision)
	if err := c.postJSON(ctx, url, authBearer, &reqBody, &respBody); err != nil {
		return nil, err
	}
	c.logger.Debug("preupload negotiated", "files", len(files))
	return respBody.Files, nil
}

// batchAction mirrors the wire shape of one object's negotiated actions.
type batchAction struct {
	Upload *hub.UploadAction `json:"upload"`
}

type batchObjectResponse struct {
	OID     string           `json:"oid"`
	Size    int64            `json:"size"`
	Actions *batchAction     `json:"actions"`
	Error   *hub.ObjectError `json:"error"`
}

// LFSBatch negotiates transfers: POST {prefix}{repo_id}.git/info/lfs/objects/batch
// under basic auth. The request always advertises both transfer styles; the
// server picks per object.
func (c *Client) LFSBatch(ctx context.Context, objects []hub.BatchObject) ([]hub.BatchObjectResult, error) {
	reqBody := struct {
		Operation string            `json:"operation"`
		Transfers []string          `json:"transfers"`
		Objects   []hub.BatchObject `json:"objects"`
		Ref       struct {
			Name string `json:"name"`
		} `json:"ref"`
		HashAlgo string `json:"hash_algo"`
	}{
		Operation: "upload",
		Transfers: []string{"basic", "multipart"},
		Objects:   objects,
		HashAlgo:  "sha256",
	}
	reqBody.Ref.Name = c.revision

	var respBody struct {
		Objects []batchObjectResponse `json:"objects"`
	}
	if err := c.postJSON(ctx, c.lfsBatchURL(), authBasic, &reqBody, &respBody); err != nil {
		return nil, err
	}

	results := make([]hub.BatchObjectResult, 0, len(respBody.Objects))
	for _, obj := range respBody.Objects {
		r := hub.BatchObjectResult{OID: obj.OID, Size: obj.Size, Error: obj.Error}
		if obj.Actions != nil {
			r.Action = obj.Actions.Upload
		}
		results = append(results, r)
	}
	c.logger.Debug("LFS batch negotiated", "objects", len(objects))
	return results, nil
}

// CompleteMultipart finalizes a multipart transfer with
// POST <upload.href> {oid, parts:[{partNumber, etag}]}.
func (c *Client) CompleteMultipart(ctx context.Context, href string, oid string, parts []hub.CompletedPart) error {
	reqBody := struct {
		OID   string              `json:"oid"`
		Parts []hub.CompletedPart `json:"parts"`
	}{OID: oid, Parts: parts}
	return c.postJSON(ctx, href, authNone, &reqBody, nil)
}

type commitFile struct {
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type commitLFSFile struct {
	Path string `json:"path"`
	Algo string `json:"algo"`
	OID  string `json:"oid"`
}

type commitDeletedFile struct {
	Path string `json:"path"`
}

// Commit submits the assembled payload:
// POST /api/{repo_type}s/{repo_id}/commit/{revision}[?create_pr=1].
func (c *Client) Commit(ctx context.Context, payload *hub.CommitPayload, createPR bool) (*hub.CommitResult, error) {
	reqBody := struct {
		Summary      string              `json:"summary"`
		Description  string              `json:"description,omitempty"`
		Files        []commitFile        `json:"files"`
		LFSFiles     []commitLFSFile     `json:"lfsFiles"`
		DeletedFiles []commitDeletedFile `json:"deletedFiles"`
	}{
		Summary:      payload.Summary,
		Description:  payload.Description,
		Files:        []commitFile{},
		LFSFiles:     []commitLFSFile{},
		DeletedFiles: []commitDeletedFile{},
	}
	for _, f := range payload.InlineFiles {
		reqBody.Files = append(reqBody.Files, commitFile{
			Path:     f.Path,
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString(f.Content),
		})
	}
	for _, f := range payload.LFSFiles {
		reqBody.LFSFiles = append(reqBody.LFSFiles, commitLFSFile{
			Path: f.Path,
			Algo: "sha256",
			OID:  f.OID,
		})
	}
	for _, p := range payload.Deletions {
		reqBody.DeletedFiles = append(reqBody.DeletedFiles, commitDeletedFile{Path: p})
	}

	query := neturl.Values{}
	if createPR {
		query.Set("create_pr", "1")
	}
	if payload.ParentCommit != "" {
		query.Set("parent_commit", payload.ParentCommit)
	}
	url := c.apiURL("commit", c.revision)
	if len(query) > 0 {
		url += "?" + query.Encode()
	}

	var respBody struct {
		CommitOID      string `json:"commitOid"`
		PullRequestURL string `json:"pullRequestUrl"`
	}
	if err := c.postJSON(ctx, url, authBearer, &reqBody, &respBody); err != nil {
		return nil, err
	}

	result := &hub.CommitResult{
		OID:            respBody.CommitOID,
		PullRequestURL: respBody.PullRequestURL,
	}
	if respBody.PullRequestURL != "" {
		rev, err := pullRequestRevision(respBody.PullRequestURL)
		if err != nil {
			return nil, err
		}
		result.PullRequestRevision = rev
	}
	return result, nil
}

// pullRequestRevision derives the effective revision ("refs/pr/<n>") for
// follow-up operations from a pull-request URL whose last path segment is the
// PR number.
func pullRequestRevision(url string) (string, error) {
	trimmed := strings.TrimRight(url, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", &hub.ProtocolError{Msg: fmt.Sprintf("malformed pull request URL %q", url)}
	}
	num, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return "", &hub.ProtocolError{Msg: fmt.Sprintf("malformed pull request URL %q", url)}
	}
	return fmt.Sprintf("refs/pr/%d", num), nil
}

// Compile-time check that Client implements hub.RemoteAPI.
var _ hub.RemoteAPI = (*Client)(nil)
