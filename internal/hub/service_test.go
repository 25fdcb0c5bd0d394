package hub_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"hubsync/internal/hub"
	"hubsync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blobCall struct {
	href    string
	content []byte
}

type partCall struct {
	url     string
	content []byte
}

type completeCall struct {
	href  string
	oid   string
	parts []hub.CompletedPart
}

// fakeAPI is a scriptable hub.RemoteAPI that records every call.
type fakeAPI struct {
	mu sync.Mutex

	// modes assigns upload modes by remote path; unlisted paths are regular.
	modes map[string]hub.UploadMode
	// batch produces negotiation results; nil means a single-shot action
	// per object.
	batch func(objects []hub.BatchObject) []hub.BatchObjectResult

	preuploadReqs [][]hub.PreuploadFile
	batchReqs     [][]hub.BatchObject
	blobs         []blobCall
	parts         []partCall
	completions   []completeCall
	commits       []*hub.CommitPayload
	commitResult  *hub.CommitResult
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		modes:        make(map[string]hub.UploadMode),
		commitResult: &hub.CommitResult{OID: "abc123"},
	}
}

func (f *fakeAPI) Preupload(_ context.Context, files []hub.PreuploadFile) ([]hub.PreuploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preuploadReqs = append(f.preuploadReqs, files)
	results := make([]hub.PreuploadResult, 0, len(files))
	for _, file := range files {
		mode, ok := f.modes[file.Path]
		if !ok {
			mode = hub.UploadModeRegular
		}
		results = append(results, hub.PreuploadResult{Path: file.Path, Mode: mode})
	}
	return results, nil
}

func (f *fakeAPI) LFSBatch(_ context.Context, objects []hub.BatchObject) ([]hub.BatchObjectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchReqs = append(f.batchReqs, objects)
	if f.batch != nil {
		return f.batch(objects), nil
	}
	results := make([]hub.BatchObjectResult, 0, len(objects))
	for _, obj := range objects {
		results = append(results, hub.BatchObjectResult{
			OID:  obj.OID,
			Size: obj.Size,
			Action: &hub.UploadAction{
				Href:   "https://storage.test/" + obj.OID,
				Header: map[string]string{},
			},
		})
	}
	return results, nil
}

func (f *fakeAPI) UploadBlob(_ context.Context, action *hub.UploadAction, content io.ReadSeeker, _ int64) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = append(f.blobs, blobCall{href: action.Href, content: data})
	return nil
}

func (f *fakeAPI) UploadPart(_ context.Context, url string, chunk io.ReadSeeker, _ int64) (string, error) {
	data, err := io.ReadAll(chunk)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts = append(f.parts, partCall{url: url, content: data})
	return fmt.Sprintf("etag-%d", len(f.parts)), nil
}

func (f *fakeAPI) CompleteMultipart(_ context.Context, href string, oid string, parts []hub.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, completeCall{href: href, oid: oid, parts: parts})
	return nil
}

func (f *fakeAPI) Commit(_ context.Context, payload *hub.CommitPayload, _ bool) (*hub.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, payload)
	return f.commitResult, nil
}

var _ hub.RemoteAPI = (*fakeAPI)(nil)

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func setup(t *testing.T) (*hub.CommitService, *fakeAPI, *testutil.MemFS) {
	t.Helper()
	api := newFakeAPI()
	fsys := testutil.NewMemFS()
	svc := hub.NewCommitService(api, fsys, hub.NewNopLogger())
	return svc, api, fsys
}

func TestCommitService_CommitFiles(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("small regular file travels inline", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := []byte("0123456789") // 10 bytes
		fsys.WriteFile("/work/small.txt", content, now)

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "add small",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/small.txt", "small.txt")},
		})
		require.NoError(t, err)

		// No LFS traffic at all.
		assert.Empty(t, api.batchReqs)
		assert.Empty(t, api.blobs)
		assert.Empty(t, api.parts)

		require.Len(t, api.commits, 1)
		payload := api.commits[0]
		require.Len(t, payload.InlineFiles, 1)
		assert.Equal(t, "small.txt", payload.InlineFiles[0].Path)
		assert.Equal(t, content, payload.InlineFiles[0].Content)
		assert.Empty(t, payload.LFSFiles)
	})

	t.Run("preupload sample is the first 512 raw bytes", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := bytes.Repeat([]byte{0xAB}, 600)
		content[0] = 0x01
		fsys.WriteFile("/work/big.bin", content, now)

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "add big",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/big.bin", "big.bin")},
		})
		require.NoError(t, err)

		require.Len(t, api.preuploadReqs, 1)
		require.Len(t, api.preuploadReqs[0], 1)
		got := api.preuploadReqs[0][0]
		assert.Equal(t, content[:512], got.Sample)
		assert.Equal(t, int64(600), got.Size)
		assert.Equal(t, sha256hex(content), got.SHA)
	})

	t.Run("sample of a short file is the whole file", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := []byte("tiny")
		fsys.WriteFile("/work/t.txt", content, now)

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "add tiny",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/t.txt", "t.txt")},
		})
		require.NoError(t, err)
		assert.Equal(t, content, api.preuploadReqs[0][0].Sample)
	})

	t.Run("regular files never enter the LFS batch", func(t *testing.T) {
		svc, api, fsys := setup(t)
		fsys.WriteFile("/work/reg.txt", []byte("regular"), now)
		lfsContent := bytes.Repeat([]byte("L"), 100)
		fsys.WriteFile("/work/blob.bin", lfsContent, now)
		api.modes["blob.bin"] = hub.UploadModeLFS

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary: "mixed",
			Operations: []hub.CommitOperation{
				hub.AddOperation("/work/reg.txt", "reg.txt"),
				hub.AddOperation("/work/blob.bin", "blob.bin"),
			},
		})
		require.NoError(t, err)

		require.Len(t, api.batchReqs, 1)
		require.Len(t, api.batchReqs[0], 1)
		assert.Equal(t, sha256hex(lfsContent), api.batchReqs[0][0].OID)
	})

	t.Run("inline and lfs sets are disjoint and cover the input", func(t *testing.T) {
		svc, api, fsys := setup(t)
		fsys.WriteFile("/work/a.txt", []byte("aaa"), now)
		fsys.WriteFile("/work/b.bin", bytes.Repeat([]byte("b"), 64), now)
		fsys.WriteFile("/work/c.txt", []byte("ccc"), now)
		api.modes["b.bin"] = hub.UploadModeLFS

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary: "three",
			Operations: []hub.CommitOperation{
				hub.AddOperation("/work/a.txt", "a.txt"),
				hub.AddOperation("/work/b.bin", "b.bin"),
				hub.AddOperation("/work/c.txt", "c.txt"),
			},
		})
		require.NoError(t, err)

		payload := api.commits[0]
		got := map[string]bool{}
		for _, f := range payload.InlineFiles {
			got[f.Path] = true
		}
		for _, f := range payload.LFSFiles {
			assert.False(t, got[f.Path], "path %q in both sets", f.Path)
			got[f.Path] = true
		}
		assert.Equal(t, map[string]bool{"a.txt": true, "b.bin": true, "c.txt": true}, got)
	})

	t.Run("multipart uploads chunks sequentially in ascending order", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := make([]byte, 50)
		for i := range content {
			content[i] = byte(i)
		}
		fsys.WriteFile("/work/large.bin", content, now)
		api.modes["large.bin"] = hub.UploadModeLFS

		oid := sha256hex(content)
		api.batch = func(objects []hub.BatchObject) []hub.BatchObjectResult {
			return []hub.BatchObjectResult{{
				OID:  oid,
				Size: 50,
				Action: &hub.UploadAction{
					Href: "https://storage.test/complete",
					Header: map[string]string{
						"chunk_size": "10",
						"5":          "https://storage.test/p5",
						"3":          "https://storage.test/p3",
						"1":          "https://storage.test/p1",
						"2":          "https://storage.test/p2",
						"4":          "https://storage.test/p4",
					},
				},
			}}
		}

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "large",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/large.bin", "large.bin")},
		})
		require.NoError(t, err)

		// Exactly 5 chunk PUTs, ascending, carrying the right slices.
		require.Len(t, api.parts, 5)
		for i, part := range api.parts {
			assert.Equal(t, fmt.Sprintf("https://storage.test/p%d", i+1), part.url)
			assert.Equal(t, content[i*10:(i+1)*10], part.content)
		}

		// One completion with parts in ascending order.
		require.Len(t, api.completions, 1)
		comp := api.completions[0]
		assert.Equal(t, "https://storage.test/complete", comp.href)
		assert.Equal(t, oid, comp.oid)
		require.Len(t, comp.parts, 5)
		for i, p := range comp.parts {
			assert.Equal(t, i+1, p.PartNumber)
		}

		// Payload references the oid, not the content.
		payload := api.commits[0]
		require.Len(t, payload.LFSFiles, 1)
		assert.Equal(t, hub.LFSFile{Path: "large.bin", OID: oid}, payload.LFSFiles[0])
		assert.Empty(t, payload.InlineFiles)
	})

	t.Run("deduplicated object is referenced without transfer", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := bytes.Repeat([]byte("d"), 80)
		fsys.WriteFile("/work/dup.bin", content, now)
		api.modes["dup.bin"] = hub.UploadModeLFS
		api.batch = func(objects []hub.BatchObject) []hub.BatchObjectResult {
			// No action: the server already stores this oid.
			return []hub.BatchObjectResult{{OID: objects[0].OID, Size: objects[0].Size}}
		}

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "dedup",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/dup.bin", "dup.bin")},
		})
		require.NoError(t, err)

		assert.Empty(t, api.blobs)
		assert.Empty(t, api.parts)
		assert.Empty(t, api.completions)
		require.Len(t, api.commits, 1)
		require.Len(t, api.commits[0].LFSFiles, 1)
		assert.Equal(t, sha256hex(content), api.commits[0].LFSFiles[0].OID)
	})

	t.Run("one failed batch object aborts all transfers", func(t *testing.T) {
		svc, api, fsys := setup(t)
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("f%d.bin", i)
			fsys.WriteFile("/work/"+name, bytes.Repeat([]byte{byte(i + 1)}, 40), now)
			api.modes[name] = hub.UploadModeLFS
		}
		api.batch = func(objects []hub.BatchObject) []hub.BatchObjectResult {
			results := make([]hub.BatchObjectResult, len(objects))
			for i, obj := range objects {
				results[i] = hub.BatchObjectResult{
					OID:  obj.OID,
					Size: obj.Size,
					Action: &hub.UploadAction{
						Href:   "https://storage.test/" + obj.OID,
						Header: map[string]string{},
					},
				}
			}
			results[1].Action = nil
			results[1].Error = &hub.ObjectError{Code: 500, Message: "storage exploded"}
			return results
		}

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary: "batch failure",
			Operations: []hub.CommitOperation{
				hub.AddOperation("/work/f0.bin", "f0.bin"),
				hub.AddOperation("/work/f1.bin", "f1.bin"),
				hub.AddOperation("/work/f2.bin", "f2.bin"),
			},
		})

		var berr *hub.BatchError
		require.ErrorAs(t, err, &berr)
		require.Len(t, berr.Failures, 1)
		assert.Contains(t, berr.Error(), "storage exploded")

		// Zero transfers for the healthy objects, no commit.
		assert.Empty(t, api.blobs)
		assert.Empty(t, api.parts)
		assert.Empty(t, api.completions)
		assert.Empty(t, api.commits)
	})

	t.Run("identical content negotiates one oid for many paths", func(t *testing.T) {
		svc, api, fsys := setup(t)
		content := bytes.Repeat([]byte("same"), 20)
		fsys.WriteFile("/work/one.bin", content, now)
		fsys.WriteFile("/work/two.bin", content, now)
		api.modes["one.bin"] = hub.UploadModeLFS
		api.modes["two.bin"] = hub.UploadModeLFS

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary: "twins",
			Operations: []hub.CommitOperation{
				hub.AddOperation("/work/one.bin", "one.bin"),
				hub.AddOperation("/work/two.bin", "two.bin"),
			},
		})
		require.NoError(t, err)

		require.Len(t, api.batchReqs[0], 1)
		assert.Len(t, api.blobs, 1)
		require.Len(t, api.commits[0].LFSFiles, 2)
	})

	t.Run("deletions travel in the payload", func(t *testing.T) {
		svc, api, fsys := setup(t)
		fsys.WriteFile("/work/a.txt", []byte("a"), now)

		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary: "del",
			Operations: []hub.CommitOperation{
				hub.AddOperation("/work/a.txt", "a.txt"),
				hub.DeleteOperation("old.txt"),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"old.txt"}, api.commits[0].Deletions)
	})

	t.Run("preupload response missing a path is a protocol error", func(t *testing.T) {
		_, api, fsys := setup(t)
		fsys.WriteFile("/work/a.txt", []byte("a"), now)

		// Wrap the fake so the preupload result is dropped.
		svc := hub.NewCommitService(&droppingAPI{fakeAPI: api}, fsys, hub.NewNopLogger())
		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "x",
			Operations: []hub.CommitOperation{hub.AddOperation("/work/a.txt", "a.txt")},
		})
		var perr *hub.ProtocolError
		assert.ErrorAs(t, err, &perr)
	})

	t.Run("validation failures happen before any network call", func(t *testing.T) {
		svc, api, _ := setup(t)
		_, err := svc.CommitFiles(context.Background(), &hub.CommitRequest{
			Summary:    "bad",
			Operations: []hub.CommitOperation{hub.AddOperation("/tmp/x", "../escape")},
		})
		var verr *hub.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, api.preuploadReqs)
		assert.Empty(t, api.commits)
	})
}

// droppingAPI forwards to fakeAPI but omits every preupload result.
type droppingAPI struct {
	*fakeAPI
}

func (d *droppingAPI) Preupload(ctx context.Context, files []hub.PreuploadFile) ([]hub.PreuploadResult, error) {
	if _, err := d.fakeAPI.Preupload(ctx, files); err != nil {
		return nil, err
	}
	return nil, nil
}
