package hub

import (
	"context"
	"io"
)

// RemoteAPI is the wire surface of the hosting service that the commit
// pipeline consumes. The production implementation lives in internal/api;
// tests inject fakes. The target repository and revision are properties of
// the implementation, fixed at construction.
type RemoteAPI interface {
	// Preupload performs the classification round trip: one call per commit
	// listing every addition, returning the server's upload-mode assignment
	// per path.
	Preupload(ctx context.Context, files []PreuploadFile) ([]PreuploadResult, error)

	// LFSBatch negotiates transfers for the LFS-bound objects of one commit.
	// The result slice carries one entry per requested oid.
	LFSBatch(ctx context.Context, objects []BatchObject) ([]BatchObjectResult, error)

	// UploadBlob performs a single-shot transfer of a whole object to the
	// action's pre-signed URL.
	UploadBlob(ctx context.Context, action *UploadAction, content io.ReadSeeker, size int64) error

	// UploadPart PUTs one chunk to its pre-signed part URL and returns the
	// ETag the storage backend assigned to it.
	UploadPart(ctx context.Context, url string, chunk io.ReadSeeker, size int64) (string, error)

	// CompleteMultipart finalizes a multipart transfer. Parts must be in
	// ascending part-number order.
	CompleteMultipart(ctx context.Context, href string, oid string, parts []CompletedPart) error

	// Commit atomically submits the assembled payload for the configured
	// revision, optionally as a pull request.
	Commit(ctx context.Context, payload *CommitPayload, createPR bool) (*CommitResult, error)
}
