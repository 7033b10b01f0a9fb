// Package ingest turns a capture submission into one durable queue item and
// at most one live extraction job, no matter how often the client resends it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/linkid"
	"thirdcoast.systems/haul/pkg/utils/language"
)

var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Publisher schedules jobs by id; adding a live id is a no-op. Retry also
// replaces a finished record under the id.
type Publisher interface {
	Add(ctx context.Context, id string, data []byte, opts ...broker.AddOptions) (bool, error)
	Retry(ctx context.Context, id string, data []byte) (bool, error)
}

type Request struct {
	URL      string `json:"url" validate:"required"`
	DeviceID string `json:"deviceId" validate:"required,max=128"`
	Language string `json:"language,omitempty"`
}

type Result struct {
	QueueItemID uuid.UUID
	JobID       string
	Status      db.QueueStatus
	Duplicate   bool
	// Scheduled is true when this call put a new job on the queue.
	Scheduled bool
}

type Service struct {
	store    *db.Store
	jobs     Publisher
	validate *validator.Validate
}

func NewService(store *db.Store, jobs Publisher) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &Service{store: store, jobs: jobs, validate: v}
}

func (s *Service) check(req *Request) (language.Tag, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.DeviceID = strings.TrimSpace(req.DeviceID)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			msg := "is invalid"
			if fe.Tag() == "required" {
				msg = "is required"
			}
			return language.Und, &ValidationError{Field: fe.Field(), Message: msg}
		}
		return language.Und, err
	}

	normalized, _, err := linkid.NormalizeSourceURL(req.URL)
	if err != nil {
		return language.Und, &ValidationError{Field: "url", Message: "is not a valid link"}
	}
	req.URL = normalized

	tag, err := language.Parse(req.Language)
	if err != nil {
		return language.Und, &ValidationError{Field: "language", Message: "is not a BCP 47 tag"}
	}
	return tag, nil
}

// Submit records a capture. A repeat of an existing (deviceId, url) pair is
// reported as Duplicate and is not an error.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	tag, err := s.check(&req)
	if err != nil {
		return nil, err
	}

	var item *db.QueueItem
	duplicate := false
	err = s.store.RunInTx(ctx, func(q *db.Queries) error {
		if err := q.UpsertDevice(ctx, req.DeviceID); err != nil {
			return fmt.Errorf("upsert device: %w", err)
		}

		created, err := q.CreateQueueItem(ctx, &db.CreateQueueItemParams{
			ID:       uuid.New(),
			DeviceID: req.DeviceID,
			URL:      req.URL,
			Language: tag,
		})
		if errors.Is(err, db.ErrAlreadyExists) {
			duplicate = true
			created, err = q.GetQueueItemByDeviceURL(ctx, req.DeviceID, req.URL)
		}
		if err != nil {
			return fmt.Errorf("create queue item: %w", err)
		}
		item = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		QueueItemID: item.ID,
		JobID:       linkid.JobIdentity(req.DeviceID, req.URL),
		Status:      item.Status,
		Duplicate:   duplicate,
	}

	// A duplicate that is still PENDING has no run that reached PROCESSING. Its
	// job may be missing (publish failed after commit, broker wiped) or
	// finished without touching the row (load error, lost status race);
	// either way it is queued again. A live job is left alone.
	if duplicate && item.Status != db.QueueStatusPending {
		slog.Debug("duplicate capture", "queue_item", item.ID, "status", item.Status)
		return res, nil
	}

	payload, err := broker.CapturePayload{QueueItemID: item.ID, DeviceID: req.DeviceID, URL: req.URL}.Encode()
	if err != nil {
		return nil, err
	}
	if duplicate {
		res.Scheduled, err = s.jobs.Retry(ctx, res.JobID, payload)
	} else {
		res.Scheduled, err = s.jobs.Add(ctx, res.JobID, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("schedule job: %w", err)
	}

	slog.Info("capture accepted",
		"queue_item", item.ID,
		"job_id", res.JobID,
		"device_id", req.DeviceID,
		"duplicate", duplicate,
		"scheduled", res.Scheduled,
	)
	return res, nil
}
