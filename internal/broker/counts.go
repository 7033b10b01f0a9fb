package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Paused    int64 `json:"paused"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Map returns the counters keyed by state name.
func (c Counts) Map() map[string]int64 {
	return map[string]int64{
		string(StateWaiting):   c.Waiting,
		string(StateActive):    c.Active,
		string(StateDelayed):   c.Delayed,
		string(StatePaused):    c.Paused,
		string(StateCompleted): c.Completed,
		string(StateFailed):    c.Failed,
	}
}

// Counts reads every counter in one round trip.
func (b *Broker) Counts(ctx context.Context) (Counts, error) {
	var (
		waiting, active, paused    *redis.IntCmd
		delayed, completed, failed *redis.IntCmd
	)
	_, err := b.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		waiting = p.LLen(ctx, b.key("wait"))
		active = p.LLen(ctx, b.key("active"))
		paused = p.LLen(ctx, b.key("paused"))
		delayed = p.ZCard(ctx, b.key("delayed"))
		completed = p.ZCard(ctx, b.key("completed"))
		failed = p.ZCard(ctx, b.key("failed"))
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("queue counts: %w", err)
	}
	return Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Paused:    paused.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}
