package hub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// sampleSize is how many leading bytes of each file travel with the
// classification request so the server can sniff content types.
const sampleSize = 512

// CommitService orchestrates one atomic commit: classify additions, negotiate
// LFS transfers, execute the transfers, assemble the payload, and submit it.
// A commit either fully succeeds or is fully rejected, never partially
// applied.
type CommitService struct {
	api    RemoteAPI
	fsmgr  FilesystemManager
	logger Logger
}

// NewCommitService creates a CommitService with the provided dependencies.
func NewCommitService(api RemoteAPI, fsmgr FilesystemManager, logger Logger) *CommitService {
	return &CommitService{
		api:    api,
		fsmgr:  fsmgr,
		logger: logger,
	}
}

// CommitFiles publishes the requested operations as one commit.
// Ordering within the call is strict: negotiation precedes any transfer, and
// all transfers precede the commit POST.
func (s *CommitService) CommitFiles(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	adds, deletions, err := splitOperations(req)
	if err != nil {
		return nil, err
	}

	classified, err := s.classify(ctx, adds)
	if err != nil {
		return nil, err
	}

	var inline, lfs []ClassifiedFile
	for _, cf := range classified {
		if cf.Mode == UploadModeLFS {
			lfs = append(lfs, cf)
		} else {
			inline = append(inline, cf)
		}
	}

	numThreads := req.NumThreads
	if numThreads <= 0 {
		numThreads = DefaultNumThreads
	}
	if err := s.uploadLFS(ctx, lfs, numThreads); err != nil {
		return nil, err
	}

	payload, err := s.buildPayload(req, inline, lfs, deletions)
	if err != nil {
		return nil, err
	}

	result, err := s.api.Commit(ctx, payload, req.CreatePR)
	if err != nil {
		return nil, fmt.Errorf("submitting commit: %w", err)
	}

	s.logger.Info("commit published",
		"summary", req.Summary,
		"inline", len(inline),
		"lfs", len(lfs),
		"deletions", len(deletions))
	return result, nil
}

// classify hashes every addition and performs the single preupload round trip
// that assigns each path an upload mode. Classification never mutates files
// on disk.
func (s *CommitService) classify(ctx context.Context, adds []FileDescriptor) ([]ClassifiedFile, error) {
	if len(adds) == 0 {
		return nil, nil
	}

	classified := make([]ClassifiedFile, 0, len(adds))
	request := make([]PreuploadFile, 0, len(adds))
	for _, fd := range adds {
		cf, sample, err := s.hashFile(fd)
		if err != nil {
			return nil, err
		}
		classified = append(classified, cf)
		request = append(request, PreuploadFile{
			Path:   fd.RemotePath,
			Size:   cf.Size,
			SHA:    cf.SHA256,
			Sample: sample,
		})
	}

	results, err := s.api.Preupload(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("classifying files: %w", err)
	}

	modes := make(map[string]UploadMode, len(results))
	for _, r := range results {
		modes[r.Path] = r.Mode
	}
	for i := range classified {
		mode, ok := modes[classified[i].RemotePath]
		if !ok {
			return nil, &ProtocolError{Msg: fmt.Sprintf(
				"preupload response missing path %q", classified[i].RemotePath)}
		}
		if mode != UploadModeRegular && mode != UploadModeLFS {
			return nil, &ProtocolError{Msg: fmt.Sprintf(
				"preupload assigned unknown mode %q to %q", mode, classified[i].RemotePath)}
		}
		classified[i].Mode = mode
	}
	return classified, nil
}

// hashFile reads a file once, computing its sha256 and capturing the leading
// sample bytes on the way through.
func (s *CommitService) hashFile(fd FileDescriptor) (ClassifiedFile, []byte, error) {
	f, err := s.fsmgr.Open(fd.LocalPath)
	if err != nil {
		return ClassifiedFile{}, nil, fmt.Errorf("opening %s: %w", fd.LocalPath, err)
	}
	defer f.Close()

	sample := make([]byte, sampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ClassifiedFile{}, nil, fmt.Errorf("reading %s: %w", fd.LocalPath, err)
	}
	sample = sample[:n]

	h := sha256.New()
	h.Write(sample)
	rest, err := io.Copy(h, f)
	if err != nil {
		return ClassifiedFile{}, nil, fmt.Errorf("hashing %s: %w", fd.LocalPath, err)
	}

	return ClassifiedFile{
		FileDescriptor: fd,
		Size:           int64(n) + rest,
		SHA256:         hex.EncodeToString(h.Sum(nil)),
	}, sample, nil
}

// transferItem is one object the executor must move: a representative file
// plus the negotiated action.
type transferItem struct {
	file   ClassifiedFile
	action *UploadAction
}

// uploadLFS negotiates the batch and executes the required transfers with a
// bounded worker pool: parallel across files, strictly sequential within one
// file's chunks. Any failure aborts the whole call.
func (s *CommitService) uploadLFS(ctx context.Context, files []ClassifiedFile, numThreads int) error {
	if len(files) == 0 {
		return nil
	}

	// Identical content appears once in the batch regardless of how many
	// paths carry it.
	byOID := make(map[string]ClassifiedFile, len(files))
	objects := make([]BatchObject, 0, len(files))
	for _, cf := range files {
		if _, ok := byOID[cf.SHA256]; ok {
			continue
		}
		byOID[cf.SHA256] = cf
		objects = append(objects, BatchObject{OID: cf.SHA256, Size: cf.Size})
	}

	results, err := s.api.LFSBatch(ctx, objects)
	if err != nil {
		return fmt.Errorf("negotiating LFS batch: %w", err)
	}

	// Collect per-object errors first: if any object failed, nothing at all
	// is transferred.
	var failures []BatchFailure
	items := make([]transferItem, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		cf, ok := byOID[r.OID]
		if !ok {
			return &ProtocolError{Msg: fmt.Sprintf("batch response contains unrequested oid %s", r.OID)}
		}
		seen[r.OID] = true
		switch {
		case r.Error != nil:
			failures = append(failures, BatchFailure{OID: r.OID, Code: r.Error.Code, Message: r.Error.Message})
		case r.Action == nil:
			// Already stored upstream: skip the transfer, keep the reference.
			s.logger.Debug("object deduplicated", "oid", r.OID)
		default:
			items = append(items, transferItem{file: cf, action: r.Action})
		}
	}
	if len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	for oid := range byOID {
		if !seen[oid] {
			return &ProtocolError{Msg: fmt.Sprintf("batch response missing oid %s", oid)}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numThreads)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return s.transferOne(ctx, item)
		})
	}
	return g.Wait()
}

// transferOne moves one object: a single PUT of the whole content, or an
// ordered sequence of chunk PUTs followed by a completion POST. Memory is
// bounded to one chunk buffer.
func (s *CommitService) transferOne(ctx context.Context, item transferItem) error {
	f, err := s.fsmgr.Open(item.file.LocalPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", item.file.LocalPath, err)
	}
	defer f.Close()

	if !item.action.IsMultipart() {
		if err := s.api.UploadBlob(ctx, item.action, f, item.file.Size); err != nil {
			return fmt.Errorf("uploading %s: %w", item.file.RemotePath, err)
		}
		s.logger.Debug("object uploaded", "oid", item.file.SHA256, "size", item.file.Size)
		return nil
	}

	plan, err := item.action.MultipartPlan(item.file.Size)
	if err != nil {
		return err
	}

	buf := make([]byte, plan.ChunkSize)
	parts := make([]CompletedPart, 0, len(plan.Parts))
	remaining := item.file.Size
	for _, part := range plan.Parts {
		want := plan.ChunkSize
		if remaining < want {
			want = remaining
		}
		if _, err := io.ReadFull(f, buf[:want]); err != nil {
			return fmt.Errorf("reading part %d of %s: %w", part.Number, item.file.LocalPath, err)
		}
		remaining -= want

		etag, err := s.api.UploadPart(ctx, part.URL, bytes.NewReader(buf[:want]), want)
		if err != nil {
			return fmt.Errorf("uploading part %d of %s: %w", part.Number, item.file.RemotePath, err)
		}
		parts = append(parts, CompletedPart{PartNumber: part.Number, ETag: etag})
	}

	if err := s.api.CompleteMultipart(ctx, item.action.Href, item.file.SHA256, parts); err != nil {
		return fmt.Errorf("completing multipart upload of %s: %w", item.file.RemotePath, err)
	}
	s.logger.Debug("multipart object uploaded",
		"oid", item.file.SHA256, "size", item.file.Size, "parts", len(parts))
	return nil
}

// buildPayload assembles the commit body. Inline files carry their full
// content; LFS files are referenced by oid only, their bytes already
// delivered by the executor.
func (s *CommitService) buildPayload(req *CommitRequest, inline, lfs []ClassifiedFile, deletions []string) (*CommitPayload, error) {
	payload := &CommitPayload{
		Summary:      req.Summary,
		Description:  req.Description,
		Deletions:    deletions,
		ParentCommit: req.ParentCommit,
	}

	for _, cf := range inline {
		f, err := s.fsmgr.Open(cf.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cf.LocalPath, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cf.LocalPath, err)
		}
		payload.InlineFiles = append(payload.InlineFiles, InlineFile{
			Path:    cf.RemotePath,
			Content: content,
		})
	}

	for _, cf := range lfs {
		payload.LFSFiles = append(payload.LFSFiles, LFSFile{
			Path: cf.RemotePath,
			OID:  cf.SHA256,
		})
	}

	return payload, nil
}
