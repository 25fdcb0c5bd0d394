package hub

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// UploadMode says how a file's content travels to the remote: embedded in the
// commit payload, or externalized through the LFS protocol.
type UploadMode string

const (
	UploadModeRegular UploadMode = "regular"
	UploadModeLFS     UploadMode = "lfs"
)

// FileDescriptor identifies a file before classification: where it lives on
// disk and where it should land in the repository.
type FileDescriptor struct {
	LocalPath  string
	RemotePath string
}

// ClassifiedFile is a FileDescriptor after the preupload round trip.
// It is created once per commit attempt and never mutated afterwards.
type ClassifiedFile struct {
	FileDescriptor
	Size   int64
	SHA256 string // hex digest of the full content; the LFS oid
	Mode   UploadMode
}

// CommitOperation is one entry of a commit: either an addition or a deletion.
// Exactly one of Add/Delete is set.
type CommitOperation struct {
	Add    *FileDescriptor
	Delete string // remote path to delete
}

// AddOperation builds an addition.
func AddOperation(localPath, remotePath string) CommitOperation {
	return CommitOperation{Add: &FileDescriptor{LocalPath: localPath, RemotePath: remotePath}}
}

// DeleteOperation builds a deletion.
func DeleteOperation(remotePath string) CommitOperation {
	return CommitOperation{Delete: remotePath}
}

// CommitRequest is the caller-facing description of one atomic commit.
type CommitRequest struct {
	Summary     string
	Description string
	Operations  []CommitOperation
	CreatePR    bool
	// ParentCommit, when set, makes the commit conditional: the remote
	// rejects it with a conflict if the revision has moved past this hash.
	ParentCommit string
	// NumThreads bounds how many distinct files upload concurrently.
	// Zero means DefaultNumThreads.
	NumThreads int
}

// DefaultNumThreads is the upload concurrency used when a CommitRequest does
// not specify one.
const DefaultNumThreads = 5

// CommitResult reports the outcome of a submitted commit.
type CommitResult struct {
	OID            string // commit hash assigned by the remote, if reported
	PullRequestURL string
	// PullRequestRevision is "refs/pr/<n>" when the commit was opened as a
	// pull request, empty otherwise.
	PullRequestRevision string
}

// PreuploadFile is one entry of the classification request.
type PreuploadFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA    string `json:"sha"`
	Sample []byte `json:"sample"` // first min(512, size) raw bytes
}

// PreuploadResult is the server's mode assignment for one path.
type PreuploadResult struct {
	Path string     `json:"path"`
	Mode UploadMode `json:"uploadMode"`
}

// BatchObject is one {oid, size} pair of an LFS batch request.
type BatchObject struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// UploadAction is the server's transfer instruction for one object. Header
// may carry a "chunk_size" entry plus digit-string keys mapping part numbers
// to pre-signed part URLs; see MultipartPlan.
type UploadAction struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header"`
	ExpiresIn int64             `json:"expires_in,omitempty"`
}

// ObjectError is a per-object failure inside an otherwise well-formed batch
// response.
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchObjectResult is the per-oid outcome of the LFS batch negotiation:
// an upload action, no action (object already stored upstream), or an error.
type BatchObjectResult struct {
	OID    string
	Size   int64
	Action *UploadAction // nil means dedup: no transfer needed
	Error  *ObjectError
}

// CompletedPart pairs a part number with the ETag returned by its PUT.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CommitPayload is the assembled body of the final commit POST.
type CommitPayload struct {
	Summary      string
	Description  string
	InlineFiles  []InlineFile
	LFSFiles     []LFSFile
	Deletions    []string
	ParentCommit string
}

// InlineFile carries a small file's full content inside the commit payload.
type InlineFile struct {
	Path    string
	Content []byte // raw bytes; base64-encoded on the wire
}

// LFSFile references an already-transferred LFS object by oid.
type LFSFile struct {
	Path string
	OID  string
}

// PartURL is one (part number, pre-signed URL) pair of a multipart plan.
type PartURL struct {
	Number int
	URL    string
}

// MultipartPlan is an UploadAction's header decoded into an explicit,
// numerically ordered transfer plan. Iteration order of the header map is
// never relied upon.
type MultipartPlan struct {
	ChunkSize int64
	Parts     []PartURL // ascending part number
}

// chunkSizeKey is the reserved header key carrying the multipart chunk size.
const chunkSizeKey = "chunk_size"

// IsMultipart reports whether the action describes a multipart transfer.
func (a *UploadAction) IsMultipart() bool {
	_, ok := a.Header[chunkSizeKey]
	return ok
}

// MultipartPlan decodes the action's header into an ordered part list and
// validates it against the object size: the number of digit-keyed part URLs
// must equal ceil(size/chunk_size).
func (a *UploadAction) MultipartPlan(size int64) (*MultipartPlan, error) {
	raw, ok := a.Header[chunkSizeKey]
	if !ok {
		return nil, &ProtocolError{Msg: "upload action has no chunk_size header"}
	}
	chunkSize, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chunkSize <= 0 {
		return nil, &ProtocolError{Msg: fmt.Sprintf("invalid chunk_size %q", raw)}
	}

	var parts []PartURL
	for key, url := range a.Header {
		num, err := strconv.Atoi(key)
		if err != nil {
			continue // non-numeric keys are ordinary headers
		}
		parts = append(parts, PartURL{Number: num, URL: url})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number })

	want := int((size + chunkSize - 1) / chunkSize)
	if len(parts) != want {
		return nil, &ProtocolError{Msg: fmt.Sprintf(
			"multipart plan has %d part URLs, want %d for size %d with chunk size %d",
			len(parts), want, size, chunkSize)}
	}

	return &MultipartPlan{ChunkSize: chunkSize, Parts: parts}, nil
}

// PushRecord is one entry of the push history log.
type PushRecord struct {
	ID            int64
	Operation     string // e.g. "Push", "ScheduledPush"
	StartedAt     time.Time
	FinishedAt    time.Time // zero while the push is still running
	Status        string    // "running", "success" or "error"
	FilesUploaded int64
	Error         string
}
