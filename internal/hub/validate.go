package hub

import (
	"fmt"
	"path"
	"strings"
)

// validateRemotePath rejects paths that could escape the repository root or
// that the commit endpoint would refuse. Called before any network traffic.
func validateRemotePath(p string) error {
	if p == "" {
		return &ValidationError{Msg: "empty remote path"}
	}
	if strings.HasPrefix(p, "/") {
		return &ValidationError{Msg: fmt.Sprintf("remote path must be relative: %q", p)}
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." {
		return &ValidationError{Msg: fmt.Sprintf("remote path escapes repository root: %q", p)}
	}
	return nil
}

// validateParentCommit rejects anything that is not a full lowercase hex
// commit hash. Empty means unconditional.
func validateParentCommit(hash string) error {
	if hash == "" {
		return nil
	}
	if len(hash) != 40 {
		return &ValidationError{Msg: fmt.Sprintf("malformed parent commit hash: %q", hash)}
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &ValidationError{Msg: fmt.Sprintf("malformed parent commit hash: %q", hash)}
		}
	}
	return nil
}

// splitOperations validates a request's operations and separates additions
// from deletions. A path may appear at most once across the whole commit.
func splitOperations(req *CommitRequest) (adds []FileDescriptor, deletions []string, err error) {
	if strings.TrimSpace(req.Summary) == "" {
		return nil, nil, &ValidationError{Msg: "empty commit summary"}
	}
	if err := validateParentCommit(req.ParentCommit); err != nil {
		return nil, nil, err
	}
	if len(req.Operations) == 0 {
		return nil, nil, &ValidationError{Msg: "commit has no operations"}
	}

	seen := make(map[string]string, len(req.Operations)) // remote path -> kind
	for _, op := range req.Operations {
		switch {
		case op.Add != nil && op.Delete != "":
			return nil, nil, &ValidationError{Msg: "operation is both an addition and a deletion"}
		case op.Add != nil:
			if err := validateRemotePath(op.Add.RemotePath); err != nil {
				return nil, nil, err
			}
			if op.Add.LocalPath == "" {
				return nil, nil, &ValidationError{Msg: fmt.Sprintf("addition %q has no local path", op.Add.RemotePath)}
			}
			if kind, dup := seen[op.Add.RemotePath]; dup {
				return nil, nil, &ValidationError{Msg: fmt.Sprintf("path %q already has a %s in this commit", op.Add.RemotePath, kind)}
			}
			seen[op.Add.RemotePath] = "addition"
			adds = append(adds, *op.Add)
		case op.Delete != "":
			if err := validateRemotePath(op.Delete); err != nil {
				return nil, nil, err
			}
			if kind, dup := seen[op.Delete]; dup {
				return nil, nil, &ValidationError{Msg: fmt.Sprintf("path %q already has a %s in this commit", op.Delete, kind)}
			}
			seen[op.Delete] = "deletion"
			deletions = append(deletions, op.Delete)
		default:
			return nil, nil, &ValidationError{Msg: "empty commit operation"}
		}
	}
	return adds, deletions, nil
}
