package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/platform/envutil"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const (
	EventCampaign = "campaign_progress"
	EventJob      = "job_updated"

	publishTimeout = 2 * time.Second
)

// Event is the JSON published for every progress change. Campaign events
// carry the campaign generation state; job events additionally carry the job
// id and its own stage and progress.
type Event struct {
	Type            string `json:"type"`
	CampaignID      uint   `json:"campaign_id,omitempty"`
	Status          string `json:"status"`
	Stage           string `json:"stage,omitempty"`
	PercentComplete int    `json:"percent_complete"`
	Error           string `json:"error,omitempty"`
	JobID           string `json:"job_id,omitempty"`
	JobType         string `json:"job_type,omitempty"`
}

func CampaignEvent(p types.CampaignProgress) Event {
	return Event{
		Type:            EventCampaign,
		CampaignID:      p.CampaignID,
		Status:          p.Status,
		Stage:           p.Stage,
		PercentComplete: p.PercentComplete,
		Error:           p.Error,
	}
}

func JobEvent(job *types.JobRun) Event {
	e := Event{
		Type:            EventJob,
		Status:          job.Status,
		Stage:           job.Stage,
		PercentComplete: job.Progress,
		Error:           job.Error,
		JobID:           job.ID.String(),
		JobType:         job.JobType,
	}
	if job.EntityType == "campaign" && job.EntityID != nil {
		e.CampaignID = *job.EntityID
	}
	return e
}

// ProgressBus publishes progress events on one Redis channel. Publishing is
// best effort: failures are logged and never reach the generation run.
type ProgressBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewProgressBus connects to REDIS_ADDR. It returns nil, nil when REDIS_ADDR
// is unset so callers can treat the bus as optional.
func NewProgressBus(log *logger.Logger) (*ProgressBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newProgressBus(log, rdb, envutil.String("REDIS_PROGRESS_CHANNEL", EventCampaign)), nil
}

func newProgressBus(log *logger.Logger, rdb *goredis.Client, channel string) *ProgressBus {
	return &ProgressBus{
		log:     log.With("service", "RedisProgressBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *ProgressBus) Channel() string { return b.channel }

// Publish implements the orchestrator's progress notifier.
func (b *ProgressBus) Publish(ctx context.Context, p types.CampaignProgress) {
	b.send(ctx, CampaignEvent(p))
}

// JobUpdated implements the job runtime's notifier.
func (b *ProgressBus) JobUpdated(ctx context.Context, job *types.JobRun) {
	if job == nil {
		return
	}
	b.send(ctx, JobEvent(job))
}

func (b *ProgressBus) send(ctx context.Context, e Event) {
	if b == nil || b.rdb == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		b.log.Warn("Encode progress event failed", "error", err)
		return
	}
	// A canceled request context must not drop the event.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(pctx, b.channel, raw).Err(); err != nil {
		b.log.Warn("Publish progress event failed", "type", e.Type, "campaign_id", e.CampaignID, "error", err)
	}
}

// Subscribe delivers decoded events to onEvent until ctx is done.
func (b *ProgressBus) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis progress bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
					b.log.Warn("bad redis progress payload", "error", err)
					continue
				}
				onEvent(e)
			}
		}
	}()
	return nil
}

func (b *ProgressBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
