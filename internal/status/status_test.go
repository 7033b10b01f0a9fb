package status

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/haul/internal/db"
)

var all = []db.QueueStatus{
	db.QueueStatusPending,
	db.QueueStatusProcessing,
	db.QueueStatusCompleted,
	db.QueueStatusFailed,
}

func TestCanTransition_EdgeTable(t *testing.T) {
	want := map[[2]db.QueueStatus]bool{
		{db.QueueStatusPending, db.QueueStatusProcessing}:   true,
		{db.QueueStatusProcessing, db.QueueStatusCompleted}: true,
		{db.QueueStatusProcessing, db.QueueStatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				require.Equal(t, want[[2]db.QueueStatus{from, to}], CanTransition(from, to))
			})
		}
	}
}

func TestTransition_HappyPath(t *testing.T) {
	item := &db.QueueItem{ID: uuid.New(), Status: db.QueueStatusPending}

	p, err := Transition(item, db.QueueStatusProcessing)
	require.NoError(t, err)
	require.Equal(t, db.QueueStatusProcessing, item.Status)
	require.Equal(t, db.QueueStatusPending, p.From)
	require.Equal(t, db.QueueStatusProcessing, p.To)
	require.Equal(t, item.ID, p.ID)

	p, err = Transition(item, db.QueueStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, db.QueueStatusProcessing, p.From)
	require.True(t, IsTerminal(item.Status))
}

func TestTransition_RejectsInvalidEdges(t *testing.T) {
	item := &db.QueueItem{ID: uuid.New(), Status: db.QueueStatusPending}

	_, err := Transition(item, db.QueueStatusCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, db.QueueStatusPending, item.Status, "rejected transition must not mutate")

	item.Status = db.QueueStatusCompleted
	_, err = Transition(item, db.QueueStatusFailed)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Transition(nil, db.QueueStatusProcessing)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFail_RecordsCause(t *testing.T) {
	item := &db.QueueItem{ID: uuid.New(), Status: db.QueueStatusProcessing}

	p, err := Fail(item, errors.New("transcript: 502"))
	require.NoError(t, err)
	require.Equal(t, db.QueueStatusFailed, item.Status)
	require.NotNil(t, p.LastError)
	require.Equal(t, "transcript: 502", *p.LastError)
	require.Equal(t, p.LastError, item.LastError)

	_, err = Fail(item, errors.New("again"))
	require.ErrorIs(t, err, ErrInvalidTransition)
}
