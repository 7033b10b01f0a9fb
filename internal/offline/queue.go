package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

type SubmitResult struct {
	QueueItemID string
	Duplicate   bool
}

// Submitter delivers one entry to the ingestion endpoint.
type Submitter interface {
	Submit(ctx context.Context, e Entry) (SubmitResult, error)
}

type FlushResult struct {
	Submitted  int  `json:"submitted"`
	Duplicates int  `json:"duplicates"`
	Skipped    bool `json:"skipped"`
}

// EntryError is returned by Flush and names the entry it stopped at.
type EntryError struct {
	Entry Entry
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("submit entry %d: %v", e.Entry.ID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Rejected reports whether the server refused the entry itself. Such an entry
// fails every flush until it is dropped.
func (e *EntryError) Rejected() bool {
	var se *StatusError
	if !errors.As(e.Err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}

// Queue couples the local store with a submitter. One flush runs at a time
// per Queue; a caller arriving mid-flush gets Skipped instead of waiting.
type Queue struct {
	store    *Store
	submit   Submitter
	inFlight atomic.Bool
}

func NewQueue(store *Store, submit Submitter) *Queue {
	return &Queue{store: store, submit: submit}
}

func (q *Queue) Enqueue(ctx context.Context, url, deviceID string) (*Entry, error) {
	return q.store.Enqueue(ctx, url, deviceID)
}

func (q *Queue) PeekAll(ctx context.Context) ([]Entry, error) {
	return q.store.PeekAll(ctx)
}

func (q *Queue) Clear(ctx context.Context) error {
	return q.store.Clear(ctx)
}

// Drop removes one entry without submitting it. It reports false when no
// entry has that id.
func (q *Queue) Drop(ctx context.Context, id int64) (bool, error) {
	return q.store.Remove(ctx, id)
}

// Flush submits every queued entry in order, one at a time. The list is only
// cleared when all of them were accepted; on the first failure nothing is
// removed and the whole list is resubmitted next time.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	if !q.inFlight.CompareAndSwap(false, true) {
		slog.Debug("flush already in progress")
		return FlushResult{Skipped: true}, nil
	}
	defer q.inFlight.Store(false)

	entries, err := q.store.PeekAll(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	if len(entries) == 0 {
		return FlushResult{}, nil
	}

	var res FlushResult
	for _, e := range entries {
		out, err := q.submit.Submit(ctx, e)
		if err != nil {
			slog.Warn("flush aborted, queue kept", "entry", e.ID, "url", e.URL, "error", err)
			return res, &EntryError{Entry: e, Err: err}
		}
		res.Submitted++
		if out.Duplicate {
			res.Duplicates++
		}
	}

	if err := q.store.clearThrough(ctx, entries[len(entries)-1].ID); err != nil {
		return res, err
	}
	slog.Info("offline queue flushed", "submitted", res.Submitted, "duplicates", res.Duplicates)
	return res, nil
}
