package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/sink"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Shipper moves events from the in-process bus to a sink in the background.
// Enqueue never blocks; a full queue drops the event.
type Shipper struct {
	sink          sink.Sink
	fallback      sink.Sink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan *events.Event
	redisQueueKey string
	deadLetterKey string
	pollTimeout   time.Duration
	logger        *zerolog.Logger
}

type ShipperOption func(*Shipper)

// WithFallback receives events that exhausted their retries.
func WithFallback(s sink.Sink) ShipperOption {
	return func(w *Shipper) {
		w.fallback = s
	}
}

// WithRedisQueue buffers events in a redis list so they survive restarts.
func WithRedisQueue(client *redis.Client, prefix string) ShipperOption {
	return func(w *Shipper) {
		w.redis = client
		if prefix != "" {
			w.redisQueueKey = prefix + ":events:queue"
			w.deadLetterKey = prefix + ":events:deadletter"
		}
	}
}

func NewShipper(target sink.Sink, retry RetryPolicy, queueSize int, logger *zerolog.Logger, opts ...ShipperOption) *Shipper {
	retry = retry.withDefaults()
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	w := &Shipper{
		sink:          target,
		retryPolicy:   retry,
		queue:         make(chan *events.Event, queueSize),
		redisQueueKey: "events:queue",
		deadLetterKey: "events:deadletter",
		pollTimeout:   time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue is an events.EventHandler.
func (w *Shipper) Enqueue(event *events.Event) {
	select {
	case w.queue <- event:
	default:
		metrics.IncEvent(metrics.OutcomeDropped)
		w.logger.Warn().
			Err(domain.ErrSinkUnavailable).
			Str("event_id", event.ID).
			Str("message", event.Message).
			Msg("event queue full, event dropped")
	}
}

// Start delivers events until ctx is done.
func (w *Shipper) Start(ctx context.Context) {
	w.logger.Info().Msg("event shipper started")
	defer w.logger.Info().Msg("event shipper stopped")

	for {
		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.queue:
				w.deliver(ctx, ev)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if ev, ok := w.tryLocalQueue(); ok {
			if err := w.pushRedis(ctx, ev); err != nil {
				w.logger.Warn().Err(err).Msg("redis push failed, delivering directly")
				w.deliver(ctx, ev)
			}
			continue
		}

		if ev, ok := w.tryRedis(ctx); ok {
			w.deliver(ctx, ev)
		}
	}
}

// Flush delivers whatever is still queued locally, one attempt each.
func (w *Shipper) Flush(ctx context.Context) {
	for {
		ev, ok := w.tryLocalQueue()
		if !ok {
			return
		}
		if err := w.sink.Write(ctx, ev); err != nil {
			w.giveUp(ctx, ev, err)
			continue
		}
		metrics.IncEvent(metrics.OutcomeSuccess)
	}
}

func (w *Shipper) deliver(ctx context.Context, ev *events.Event) {
	var err error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		if err = w.sink.Write(ctx, ev); err == nil {
			metrics.IncEvent(metrics.OutcomeSuccess)
			return
		}
		if attempt == w.retryPolicy.MaxRetries {
			break
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("event delivery failed, retrying")
		if !sleep(ctx, delay) {
			break
		}
	}
	w.giveUp(ctx, ev, err)
}

func (w *Shipper) giveUp(ctx context.Context, ev *events.Event, cause error) {
	metrics.IncEvent(metrics.OutcomeError)
	if !errors.Is(cause, domain.ErrSinkUnavailable) {
		cause = errors.Join(domain.ErrSinkUnavailable, cause)
	}
	w.logger.Warn().Err(cause).Str("event_id", ev.ID).Str("message", ev.Message).Msg("event delivery failed")

	if w.fallback != nil {
		_ = w.fallback.Write(ctx, ev)
	}
	w.pushDeadLetter(ctx, ev)
}

func (w *Shipper) tryLocalQueue() (*events.Event, bool) {
	select {
	case ev := <-w.queue:
		return ev, true
	default:
		return nil, false
	}
}

func (w *Shipper) tryRedis(ctx context.Context) (*events.Event, bool) {
	res, err := w.redis.BRPop(ctx, w.pollTimeout, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return nil, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		sleep(ctx, w.pollTimeout)
		return nil, false
	}
	if len(res) != 2 {
		return nil, false
	}

	var ev events.Event
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		w.logger.Error().Err(err).Msg("decode queued event")
		return nil, false
	}
	return &ev, true
}

func (w *Shipper) pushRedis(ctx context.Context, ev *events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *Shipper) pushDeadLetter(ctx context.Context, ev *events.Event) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		w.logger.Error().Err(err).Str("event_id", ev.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("event_id", ev.ID).Msg("deadletter push")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
