package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/extraction"
	"thirdcoast.systems/haul/internal/linkid"
	"thirdcoast.systems/haul/internal/transcript"
)

type fakeTranscripts struct {
	text string
	err  error
	got  transcript.Request
}

func (f *fakeTranscripts) Fetch(ctx context.Context, req transcript.Request) (string, error) {
	f.got = req
	return f.text, f.err
}

type fakeExtractor struct {
	groups []extraction.Group
	err    error
	known  []extraction.KnownCategory
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, known []extraction.KnownCategory) ([]extraction.Group, error) {
	f.calls++
	f.known = known
	return f.groups, f.err
}

const (
	device   = "dev-1"
	videoURL = "https://video/1"
)

var (
	itemCols     = []string{"id", "device_id", "url", "language", "status", "last_error", "created_at", "updated_at", "device_id", "device_created_at"}
	categoryCols = []string{"id", "device_id", "name", "description", "created_at"}
)

// id the database hands back for the device's "skincare" row
var skincareID = uuid.MustParse("6f1c1e9e-4c1a-4f57-9a55-2d0f8f7c0b11")

func ptr(s string) *string { return &s }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func expectLoad(mock pgxmock.PgxPoolIface, id uuid.UUID, st db.QueueStatus) {
	now := time.Now()
	mock.ExpectQuery(`FROM queue_items q`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(id, device, videoURL, nil, st, nil, now, now, device, now))
}

func expectStatus(mock pgxmock.PgxPoolIface, id uuid.UUID, from, to db.QueueStatus, lastErr *string) *pgxmock.ExpectedExec {
	return mock.ExpectExec(`UPDATE queue_items`).WithArgs(id, from, to, lastErr)
}

func expectCategories(mock pgxmock.PgxPoolIface, existing ...db.Category) {
	rows := pgxmock.NewRows(categoryCols)
	for _, c := range existing {
		rows.AddRow(c.ID, c.DeviceID, c.Name, c.Description, c.CreatedAt)
	}
	mock.ExpectQuery(`FROM categories`).WithArgs(device).WillReturnRows(rows)
}

func skincareGroup() []extraction.Group {
	return []extraction.Group{{
		Category: "skincare",
		Products: []extraction.Product{{Name: "Snail Mucin", Description: "essence", MentionedContext: "holy grail"}},
	}}
}

func expectPersistSkincare(mock pgxmock.PgxPoolIface, id uuid.UUID) {
	catID := skincareID
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs(pgxmock.AnyArg(), device, "skincare", "").
		WillReturnRows(pgxmock.NewRows(categoryCols).AddRow(catID, device, "skincare", "", time.Now()))
	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(linkid.ProductID(catID, "Snail Mucin"), catID, "Snail Mucin", "essence", (*string)(nil), "holy grail", videoURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectStatus(mock, id, db.QueueStatusProcessing, db.QueueStatusCompleted, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
}

func TestProcess_HappyPath(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	expectLoad(mock, id, db.QueueStatusPending)
	expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectCategories(mock, db.Category{ID: uuid.New(), DeviceID: device, Name: "makeup", Description: "face", CreatedAt: time.Now()})
	expectPersistSkincare(mock, id)

	tr := &fakeTranscripts{text: "this snail mucin is my holy grail"}
	ex := &fakeExtractor{groups: skincareGroup()}
	out, err := NewProcessor(db.NewStore(mock), tr, ex).Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.NoError(t, err)
	require.Equal(t, &Outcome{Categories: 1, Products: 1}, out)

	require.Equal(t, videoURL, tr.got.VideoURL)
	require.Equal(t, []extraction.KnownCategory{{Name: "makeup", Description: "face"}}, ex.known)
}

func TestProcess_RerunIsIdempotent(t *testing.T) {
	mock := newMock(t)
	first, second := uuid.New(), uuid.New()

	// the second run lands on the existing category row and the same product ids
	for _, id := range []uuid.UUID{first, second} {
		expectLoad(mock, id, db.QueueStatusPending)
		expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		expectCategories(mock)
		expectPersistSkincare(mock, id)
	}

	proc := NewProcessor(db.NewStore(mock), &fakeTranscripts{text: "t"}, &fakeExtractor{groups: skincareGroup()})
	for _, id := range []uuid.UUID{first, second} {
		_, err := proc.Process(context.Background(), broker.CapturePayload{QueueItemID: id})
		require.NoError(t, err)
	}
}

func TestProcess_EmptyExtractionCompletes(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	expectLoad(mock, id, db.QueueStatusPending)
	expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectCategories(mock)
	mock.ExpectBegin()
	expectStatus(mock, id, db.QueueStatusProcessing, db.QueueStatusCompleted, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	out, err := NewProcessor(db.NewStore(mock), &fakeTranscripts{text: "just vibes"}, &fakeExtractor{}).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.NoError(t, err)
	require.Equal(t, &Outcome{}, out)
}

func TestProcess_TranscriptFailureMarksFailed(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	boom := errors.New("service down")

	expectLoad(mock, id, db.QueueStatusPending)
	expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectStatus(mock, id, db.QueueStatusProcessing, db.QueueStatusFailed, ptr("fetch transcript: service down")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ex := &fakeExtractor{groups: skincareGroup()}
	_, err := NewProcessor(db.NewStore(mock), &fakeTranscripts{err: boom}, ex).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.ErrorIs(t, err, boom)
	require.Zero(t, ex.calls, "extraction must not run without a transcript")
}

func TestProcess_ExtractionFailureMarksFailed(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	expectLoad(mock, id, db.QueueStatusPending)
	expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectCategories(mock)
	expectStatus(mock, id, db.QueueStatusProcessing, db.QueueStatusFailed, ptr("extract products: rate limited")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := NewProcessor(db.NewStore(mock), &fakeTranscripts{text: "t"}, &fakeExtractor{err: errors.New("rate limited")}).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.Error(t, err)
}

func TestProcess_PersistenceFailureRollsBackEverything(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	catID := skincareID

	expectLoad(mock, id, db.QueueStatusPending)
	expectStatus(mock, id, db.QueueStatusPending, db.QueueStatusProcessing, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectCategories(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs(pgxmock.AnyArg(), device, "skincare", "").
		WillReturnRows(pgxmock.NewRows(categoryCols).AddRow(catID, device, "skincare", "", time.Now()))
	mock.ExpectExec(`INSERT INTO products`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	expectStatus(mock, id, db.QueueStatusProcessing, db.QueueStatusFailed, ptr(`persist products: upsert product "Snail Mucin": disk full`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := NewProcessor(db.NewStore(mock), &fakeTranscripts{text: "t"}, &fakeExtractor{groups: skincareGroup()}).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.ErrorContains(t, err, "disk full")
}

func TestProcess_MissingQueueItem(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	mock.ExpectQuery(`FROM queue_items q`).WithArgs(id).WillReturnRows(pgxmock.NewRows(itemCols))

	_, err := NewProcessor(db.NewStore(mock), &fakeTranscripts{}, &fakeExtractor{}).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.ErrorIs(t, err, ErrQueueItemMissing)
}

func TestProcess_AlreadyFinishedItemIsLeftAlone(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	expectLoad(mock, id, db.QueueStatusCompleted)

	tr := &fakeTranscripts{text: "t"}
	_, err := NewProcessor(db.NewStore(mock), tr, &fakeExtractor{}).
		Process(context.Background(), broker.CapturePayload{QueueItemID: id})
	require.Error(t, err)
	require.Empty(t, tr.got.VideoURL)
}
