package hub

import "time"

// History records every push so past operations can be inspected after the
// fact. Implementations live in internal/history.
type History interface {
	// Begin records the start of a push and returns its row ID.
	Begin(operation string, startedAt time.Time) (int64, error)

	// Finish completes a previously begun record. errMsg is empty on success.
	Finish(id int64, finishedAt time.Time, status string, filesUploaded int64, errMsg string) error

	// List returns the most recent records, newest first.
	List(limit int) ([]PushRecord, error)

	Close() error
}
