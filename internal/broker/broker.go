// Package broker is a durable job queue on Redis. Jobs carry caller-chosen
// ids; adding an id the queue still knows about is a no-op, which makes the
// id the dedup key for a unit of work.
//
// Layout under "{prefix}:{queue}:":
//
//	wait, active, paused   lists of job ids
//	delayed                zset scored by run-at (ms)
//	completed, failed      zsets scored by finishedOn (ms), trimmed to keep-N
//	job:{id}               hash with the payload and bookkeeping
//	meta                   hash, "paused" set while the queue is paused
package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrNotActive   = errors.New("job is not active")
)

type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

const promoteBatch = 100

type Options struct {
	Prefix string
	Queue  string
	// Finished jobs beyond these counts are dropped, oldest first, and their
	// ids can be added again. Zero selects the defaults (1000 / 5000).
	KeepCompleted int64
	KeepFailed    int64
}

type Broker struct {
	rdb  redis.UniversalClient
	base string
	opts Options
	now  func() time.Time
}

func New(rdb redis.UniversalClient, opts Options) *Broker {
	if opts.Prefix == "" {
		opts.Prefix = "haul"
	}
	if opts.Queue == "" {
		opts.Queue = "extraction"
	}
	if opts.KeepCompleted <= 0 {
		opts.KeepCompleted = 1000
	}
	if opts.KeepFailed <= 0 {
		opts.KeepFailed = 5000
	}
	return &Broker{
		rdb:  rdb,
		base: opts.Prefix + ":" + opts.Queue + ":",
		opts: opts,
		now:  time.Now,
	}
}

func (b *Broker) key(name string) string { return b.base + name }

func (b *Broker) jobKey(id string) string { return b.base + "job:" + id }

type Job struct {
	ID           string
	Data         []byte
	Timestamp    time.Time
	ProcessedOn  time.Time
	FinishedOn   time.Time
	AttemptsMade int
	State        State
	FailedReason string
}

type AddOptions struct {
	Delay time.Duration
}

// Add enqueues data under id. It reports false, without error, when a job with
// the same id is waiting, delayed, paused, active or still retained as finished.
func (b *Broker) Add(ctx context.Context, id string, data []byte, opts ...AddOptions) (bool, error) {
	if id == "" {
		return false, errors.New("job id is required")
	}
	var delay time.Duration
	for _, o := range opts {
		delay = o.Delay
	}

	now := b.now()
	res, err := addJobScript.Run(ctx, b.rdb,
		[]string{b.jobKey(id), b.key("wait"), b.key("paused"), b.key("delayed"), b.key("meta")},
		id, data, now.UnixMilli(), delay.Milliseconds(), now.Add(delay).UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("add job %s: %w", id, err)
	}
	return res == 1, nil
}

// Retry is Add for an id whose previous run may have finished: a completed or
// failed record under id is discarded and the job is queued again. A job that
// is still waiting, delayed, paused or active is left alone and Retry reports
// false.
func (b *Broker) Retry(ctx context.Context, id string, data []byte) (bool, error) {
	if id == "" {
		return false, errors.New("job id is required")
	}
	now := b.now()
	res, err := retryJobScript.Run(ctx, b.rdb,
		[]string{
			b.jobKey(id), b.key("wait"), b.key("paused"), b.key("delayed"), b.key("meta"),
			b.key(string(StateCompleted)), b.key(string(StateFailed)),
		},
		id, data, now.UnixMilli(), 0, now.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("retry job %s: %w", id, err)
	}
	return res == 1, nil
}

// Reserve blocks up to timeout for the next waiting job and moves it to
// active. It returns nil, nil when nothing arrived in time.
func (b *Broker) Reserve(ctx context.Context, timeout time.Duration) (*Job, error) {
	if _, err := b.PromoteDelayed(ctx); err != nil {
		return nil, err
	}

	id, err := b.rdb.BLMove(ctx, b.key("wait"), b.key("active"), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}

	vals, err := moveToActiveScript.Run(ctx, b.rdb,
		[]string{b.key("active"), b.jobKey(id)},
		id, b.now().UnixMilli(),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		// hash reclaimed while the id sat in wait; nothing to run
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("activate job %s: %w", id, err)
	}
	return jobFromPairs(vals), nil
}

// Complete moves an active job to completed.
func (b *Broker) Complete(ctx context.Context, job *Job, result string) error {
	return b.finish(ctx, job, StateCompleted, b.opts.KeepCompleted, "returnvalue", result)
}

// Fail moves an active job to failed, recording reason.
func (b *Broker) Fail(ctx context.Context, job *Job, reason string) error {
	return b.finish(ctx, job, StateFailed, b.opts.KeepFailed, "failedReason", reason)
}

func (b *Broker) finish(ctx context.Context, job *Job, state State, keep int64, field, value string) error {
	now := b.now()
	res, err := finishJobScript.Run(ctx, b.rdb,
		[]string{b.key("active"), b.key(string(state)), b.jobKey(job.ID)},
		job.ID, now.UnixMilli(), keep, b.base+"job:", string(state), field, value,
	).Int()
	if err != nil {
		return fmt.Errorf("%s job %s: %w", state, job.ID, err)
	}
	if res < 0 {
		return fmt.Errorf("%s job %s: %w", state, job.ID, ErrNotActive)
	}
	job.State = state
	job.FinishedOn = now
	if state == StateFailed {
		job.FailedReason = value
	}
	return nil
}

// PromoteDelayed moves delayed jobs whose time has come to wait.
func (b *Broker) PromoteDelayed(ctx context.Context) (int, error) {
	n, err := promoteDelayedScript.Run(ctx, b.rdb,
		[]string{b.key("delayed"), b.key("wait"), b.key("paused"), b.key("meta")},
		b.now().UnixMilli(), b.base+"job:", promoteBatch,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed: %w", err)
	}
	return n, nil
}

// Pause parks waiting jobs; new jobs are parked too until Resume.
func (b *Broker) Pause(ctx context.Context) error {
	return pauseScript.Run(ctx, b.rdb,
		[]string{b.key("wait"), b.key("paused"), b.key("meta")}, "1", b.base+"job:").Err()
}

func (b *Broker) Resume(ctx context.Context) error {
	return pauseScript.Run(ctx, b.rdb,
		[]string{b.key("paused"), b.key("wait"), b.key("meta")}, "0", b.base+"job:").Err()
}

// GetJob returns the stored job, or ErrJobNotFound once it has been reclaimed.
func (b *Broker) GetJob(ctx context.Context, id string) (*Job, error) {
	vals, err := b.rdb.HGetAll(ctx, b.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromMap(vals), nil
}

// State reports where id currently sits, StateUnknown when the queue has no record.
func (b *Broker) State(ctx context.Context, id string) (State, error) {
	s, err := b.rdb.HGet(ctx, b.jobKey(id), "state").Result()
	if errors.Is(err, redis.Nil) {
		return StateUnknown, nil
	}
	if err != nil {
		return StateUnknown, fmt.Errorf("job state %s: %w", id, err)
	}
	return State(s), nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func jobFromPairs(vals []string) *Job {
	m := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		m[vals[i]] = vals[i+1]
	}
	return jobFromMap(m)
}

func jobFromMap(m map[string]string) *Job {
	attempts, _ := strconv.Atoi(m["attemptsMade"])
	return &Job{
		ID:           m["id"],
		Data:         []byte(m["data"]),
		Timestamp:    millis(m["timestamp"]),
		ProcessedOn:  millis(m["processedOn"]),
		FinishedOn:   millis(m["finishedOn"]),
		AttemptsMade: attempts,
		State:        State(m["state"]),
		FailedReason: m["failedReason"],
	}
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
