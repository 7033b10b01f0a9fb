// Package pipeline runs extraction jobs: transcript, product extraction, and
// one transaction that stores the result and completes the queue item.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/extraction"
	"thirdcoast.systems/haul/internal/linkid"
	"thirdcoast.systems/haul/internal/status"
	"thirdcoast.systems/haul/internal/transcript"
)

// ErrQueueItemMissing means a job points at a queue item that does not exist.
var ErrQueueItemMissing = errors.New("queue item missing")

const failMarkTimeout = 10 * time.Second

type Transcriber interface {
	Fetch(ctx context.Context, req transcript.Request) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, transcript string, known []extraction.KnownCategory) ([]extraction.Group, error)
}

type Outcome struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
}

type Processor struct {
	store       *db.Store
	transcripts Transcriber
	extractor   Extractor
}

func NewProcessor(store *db.Store, transcripts Transcriber, extractor Extractor) *Processor {
	return &Processor{store: store, transcripts: transcripts, extractor: extractor}
}

// Process drives one queue item from PENDING to COMPLETED or FAILED. Any
// failure after the item reached PROCESSING marks it FAILED and is returned.
func (p *Processor) Process(ctx context.Context, job broker.CapturePayload) (*Outcome, error) {
	row, err := p.store.Queries().GetQueueItemWithDevice(ctx, job.QueueItemID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrQueueItemMissing, job.QueueItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load queue item %s: %w", job.QueueItemID, err)
	}
	item := &row.QueueItem
	log := slog.With("queue_item", item.ID, "device_id", item.DeviceID)

	update, err := status.Transition(item, db.QueueStatusProcessing)
	if err != nil {
		return nil, err
	}
	if err := p.store.Queries().UpdateQueueItemStatus(ctx, update); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	log.Info("processing capture", "url", item.URL)

	outcome, err := p.run(ctx, item, log)
	if err != nil {
		p.markFailed(ctx, item, err, log)
		return nil, err
	}

	log.Info("capture completed", "categories", outcome.Categories, "products", outcome.Products)
	return outcome, nil
}

func (p *Processor) run(ctx context.Context, item *db.QueueItem, log *slog.Logger) (*Outcome, error) {
	text, err := p.transcripts.Fetch(ctx, transcript.Request{VideoURL: item.URL, Language: item.Language})
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	log.Debug("transcript fetched", "chars", len(text))

	categories, err := p.store.Queries().ListCategoriesByDevice(ctx, item.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	known := make([]extraction.KnownCategory, 0, len(categories))
	for _, c := range categories {
		known = append(known, extraction.KnownCategory{Name: c.Name, Description: c.Description})
	}

	groups, err := p.extractor.Extract(ctx, text, known)
	if err != nil {
		return nil, fmt.Errorf("extract products: %w", err)
	}
	if len(groups) == 0 {
		log.Info("no products extracted")
	}

	outcome := &Outcome{}
	err = p.store.RunInTx(ctx, func(q *db.Queries) error {
		for _, g := range groups {
			cat, err := q.UpsertCategory(ctx, &db.UpsertCategoryParams{
				ID:          uuid.New(),
				DeviceID:    item.DeviceID,
				Name:        g.Category,
				Description: g.Description,
			})
			if err != nil {
				return fmt.Errorf("upsert category %q: %w", g.Category, err)
			}
			outcome.Categories++

			for _, prod := range g.Products {
				err := q.UpsertProduct(ctx, &db.UpsertProductParams{
					ID:               linkid.ProductID(cat.ID, prod.Name),
					CategoryID:       cat.ID,
					Name:             prod.Name,
					Description:      prod.Description,
					Icon:             prod.Icon,
					MentionedContent: prod.MentionedContext,
					TiktokURL:        item.URL,
				})
				if err != nil {
					return fmt.Errorf("upsert product %q: %w", prod.Name, err)
				}
				outcome.Products++
			}
		}

		done, err := status.Transition(item, db.QueueStatusCompleted)
		if err != nil {
			return err
		}
		return q.UpdateQueueItemStatus(ctx, done)
	})
	if err != nil {
		// the in-memory transition rolled back with the transaction
		item.Status = db.QueueStatusProcessing
		return nil, fmt.Errorf("persist products: %w", err)
	}
	return outcome, nil
}

func (p *Processor) markFailed(ctx context.Context, item *db.QueueItem, cause error, log *slog.Logger) {
	update, err := status.Fail(item, cause)
	if err != nil {
		log.Error("cannot mark queue item failed", "error", err)
		return
	}
	// record the failure even when the job context is already done
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failMarkTimeout)
	defer cancel()
	if err := p.store.Queries().UpdateQueueItemStatus(ctx, update); err != nil {
		log.Error("mark queue item failed", "error", err, "cause", cause)
		return
	}
	log.Warn("capture failed", "error", cause)
}
