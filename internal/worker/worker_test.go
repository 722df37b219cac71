package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	written  []*events.Event
}

func (f *fakeSink) Write(_ context.Context, ev *events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("index unavailable")
	}
	f.written = append(f.written, ev)
	return nil
}

func (f *fakeSink) snapshot() (int, []*events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]*events.Event(nil), f.written...)
}

func fastRetry(max int) RetryPolicy {
	return RetryPolicy{MaxRetries: max, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func newEvent(msg string) *events.Event {
	return &events.Event{ID: msg, Level: events.LevelInfo, Message: msg, Timestamp: time.Now().UTC()}
}

func TestShipperDeliversInOrder(t *testing.T) {
	target := &fakeSink{}
	w := NewShipper(target, fastRetry(3), 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Enqueue(newEvent("a"))
	w.Enqueue(newEvent("b"))

	assert.Eventually(t, func() bool {
		_, written := target.snapshot()
		return len(written) == 2
	}, 2*time.Second, 5*time.Millisecond)

	_, written := target.snapshot()
	assert.Equal(t, "a", written[0].Message)
	assert.Equal(t, "b", written[1].Message)
}

func TestShipperRetriesThenSucceeds(t *testing.T) {
	target := &fakeSink{failures: 2}
	w := NewShipper(target, fastRetry(3), 8, nil)

	w.deliver(context.Background(), newEvent("a"))

	calls, written := target.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, written, 1)
}

func TestShipperGivesUpToFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	target := &fakeSink{failures: 10}
	fallback := &fakeSink{}
	w := NewShipper(target, fastRetry(2), 8, &logger, WithFallback(fallback))

	w.deliver(context.Background(), newEvent("lost"))

	calls, written := target.snapshot()
	assert.Equal(t, 2, calls)
	assert.Empty(t, written)

	_, saved := fallback.snapshot()
	require.Len(t, saved, 1)
	assert.Equal(t, "lost", saved[0].Message)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), domain.ErrSinkUnavailable.Error())
}

func TestShipperEnqueueNeverBlocks(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	w := NewShipper(&fakeSink{}, fastRetry(1), 1, &logger)

	done := make(chan struct{})
	go func() {
		w.Enqueue(newEvent("kept"))
		w.Enqueue(newEvent("dropped"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.Contains(t, buf.String(), "event queue full")
}

func TestShipperFlush(t *testing.T) {
	target := &fakeSink{}
	w := NewShipper(target, fastRetry(3), 8, nil)
	w.Enqueue(newEvent("a"))
	w.Enqueue(newEvent("b"))

	w.Flush(context.Background())

	_, written := target.snapshot()
	assert.Len(t, written, 2)
	_, ok := w.tryLocalQueue()
	assert.False(t, ok)
}

func TestShipperStopsOnCancel(t *testing.T) {
	w := NewShipper(&fakeSink{}, fastRetry(1), 8, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shipper did not stop")
	}
}

func TestShipperRedisQueue(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	target := &fakeSink{}
	w := NewShipper(target, fastRetry(3), 8, nil, WithRedisQueue(client, "test"))
	w.pollTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Enqueue(newEvent("durable"))

	assert.Eventually(t, func() bool {
		_, written := target.snapshot()
		return len(written) == 1
	}, 3*time.Second, 10*time.Millisecond)

	_, written := target.snapshot()
	assert.Equal(t, "durable", written[0].Message)
}

func TestShipperRedisDeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	w := NewShipper(&fakeSink{failures: 10}, fastRetry(1), 8, nil, WithRedisQueue(client, "test"))
	w.deliver(context.Background(), newEvent("dead"))

	items, err := s.List("test:events:deadletter")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(items[0]), &ev))
	assert.Equal(t, "dead", ev.Message)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{MaxRetries: 7}.withDefaults()

	assert.Equal(t, 7, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.BackoffFactor)
	assert.Equal(t, 30*time.Second, p.NextDelay(20))
}
