// Package status owns the queue item lifecycle:
//
//	PENDING -> PROCESSING -> COMPLETED
//	                      -> FAILED
//
// PENDING is only ever set at creation. COMPLETED and FAILED are terminal.
package status

import (
	"errors"
	"fmt"

	"thirdcoast.systems/haul/internal/db"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var allowed = map[db.QueueStatus][]db.QueueStatus{
	db.QueueStatusPending:    {db.QueueStatusProcessing},
	db.QueueStatusProcessing: {db.QueueStatusCompleted, db.QueueStatusFailed},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to db.QueueStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s db.QueueStatus) bool {
	return s == db.QueueStatusCompleted || s == db.QueueStatusFailed
}

// Transition moves item to next in memory and returns the update that
// persists it. The returned params only apply if the stored row is still in
// the status item had before the call.
func Transition(item *db.QueueItem, next db.QueueStatus) (*db.UpdateQueueItemStatusParams, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil queue item", ErrInvalidTransition)
	}
	from := item.Status
	if !CanTransition(from, next) {
		return nil, fmt.Errorf("%w: %s -> %s (item %s)", ErrInvalidTransition, from, next, item.ID)
	}

	item.Status = next
	if next != db.QueueStatusFailed {
		item.LastError = nil
	}
	return &db.UpdateQueueItemStatusParams{
		ID:        item.ID,
		From:      from,
		To:        next,
		LastError: item.LastError,
	}, nil
}

// Fail is Transition to FAILED carrying the cause.
func Fail(item *db.QueueItem, cause error) (*db.UpdateQueueItemStatusParams, error) {
	params, err := Transition(item, db.QueueStatusFailed)
	if err != nil {
		return nil, err
	}
	if cause != nil {
		msg := cause.Error()
		item.LastError = &msg
		params.LastError = &msg
	}
	return params, nil
}
