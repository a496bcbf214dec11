package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/clonehub/internal/metrics"
	"github.com/yoockh/clonehub/internal/storage"
)

// OrphanSweeper deletes blobs that were stored but never got a metadata
// record. Handles arrive on a Redis stream. A failed delete is parked in a
// sorted set scored by its next attempt time, with exponential backoff, and
// moved back onto the stream once due. Each handle gets MaxAttempts deletes.
type OrphanSweeper struct {
	Redis      *redis.Client
	Store      storage.BlobStore
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	MaxAttempts    int

	RetryKey        string
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	PromoteInterval time.Duration

	now func() time.Time
}

type retryEntry struct {
	Handle   string `json:"handle"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

func (p *OrphanSweeper) defaults() {
	if p.Stream == "" {
		p.Stream = "blob:orphans"
	}
	if p.Group == "" {
		p.Group = "orphan-sweepers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "sweeper"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.RetryKey == "" {
		p.RetryKey = p.Stream + ":retry"
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 2 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Minute
	}
	if p.PromoteInterval <= 0 {
		p.PromoteInterval = time.Second
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

// backoff returns the wait before the attempt that follows attempts failures.
func (p *OrphanSweeper) backoff(attempts int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

func (p *OrphanSweeper) schedule(ctx context.Context, e retryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	at := p.now().Add(p.backoff(e.Attempts))
	return p.Redis.ZAdd(ctx, p.RetryKey, redis.Z{Score: float64(at.UnixMilli()), Member: string(b)}).Err()
}

// Promote moves due retries back onto the stream and returns how many moved.
func (p *OrphanSweeper) Promote(ctx context.Context) (int, error) {
	p.defaults()
	due, err := p.Redis.ZRangeByScore(ctx, p.RetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(p.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range due {
		// another sweeper may have taken it
		removed, err := p.Redis.ZRem(ctx, p.RetryKey, m).Result()
		if err != nil {
			return n, err
		}
		if removed == 0 {
			continue
		}
		var e retryEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			p.Logger.WithError(err).WithField("entry", m).Error("dropping malformed orphan retry")
			continue
		}
		if err := p.enqueue(ctx, e.Handle, e.Reason, e.Attempts); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (p *OrphanSweeper) runPromoter(ctx context.Context) {
	t := time.NewTicker(p.PromoteInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.Promote(ctx); err != nil && ctx.Err() == nil {
				p.Logger.WithError(err).Warn("orphan retry promotion failed")
			}
		}
	}
}

// Enqueue records handle for later deletion.
func (p *OrphanSweeper) Enqueue(ctx context.Context, handle, reason string) error {
	p.defaults()
	return p.enqueue(ctx, handle, reason, 0)
}

func (p *OrphanSweeper) enqueue(ctx context.Context, handle, reason string, attempts int) error {
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream,
		Values: map[string]any{
			"handle":   handle,
			"reason":   reason,
			"attempts": strconv.Itoa(attempts),
			"ts_unix":  strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

func (p *OrphanSweeper) ensureGroup(ctx context.Context) {
	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP
}

func (p *OrphanSweeper) Start(ctx context.Context) error {
	if p.Redis == nil || p.Store == nil {
		return errors.New("OrphanSweeper missing dependency: Redis/Store must be set")
	}
	p.defaults()
	p.ensureGroup(ctx)

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	go p.runPromoter(ctx)
	return nil
}

func (p *OrphanSweeper) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := p.read(ctx, consumer, 5*time.Second); err != nil {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// Drain processes whatever is pending for consumer without blocking and
// returns the number of messages handled.
func (p *OrphanSweeper) Drain(ctx context.Context, consumer string) (int, error) {
	p.defaults()
	p.ensureGroup(ctx)
	return p.read(ctx, consumer, -1)
}

func (p *OrphanSweeper) read(ctx context.Context, consumer string, block time.Duration) (int, error) {
	res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    p.Group,
		Consumer: consumer,
		Streams:  []string{p.Stream, ">"},
		Count:    10,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, stream := range res {
		for _, msg := range stream.Messages {
			p.handleMsg(ctx, msg)
			_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			n++
		}
	}
	return n, nil
}

func (p *OrphanSweeper) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	handle := getStr("handle")
	if handle == "" {
		return
	}
	attempts, _ := strconv.Atoi(getStr("attempts"))
	attempts++

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"handle":   handle,
		"reason":   getStr("reason"),
		"attempt":  attempts,
	})

	err := p.Store.Delete(ctx, handle)
	if err == nil {
		metrics.OrphanBlobs.WithLabelValues(metrics.OrphanDeleted).Inc()
		log.Info("orphan blob deleted")
		return
	}

	if attempts >= p.MaxAttempts {
		metrics.OrphanBlobs.WithLabelValues(metrics.ResultFailed).Inc()
		log.WithError(err).Error("giving up on orphan blob")
		return
	}
	e := retryEntry{Handle: handle, Reason: getStr("reason"), Attempts: attempts}
	if qerr := p.schedule(ctx, e); qerr != nil {
		log.WithError(qerr).Error("failed to schedule orphan blob retry")
		return
	}
	log.WithError(err).WithField("retry_in", p.backoff(attempts).String()).Warn("orphan blob delete failed, retry scheduled")
}
