// Package sink delivers events to their destinations.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/logging"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog"
)

// Sink writes one event. Implementations may block on the network.
type Sink interface {
	Write(ctx context.Context, event *events.Event) error
}

// ElasticSink indexes events as documents in a search index.
type ElasticSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticSink(cfg config.ElasticConfig, index string) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// the shipper owns retries
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticSink{client: client, index: index}, nil
}

func (s *ElasticSink) Write(ctx context.Context, event *events.Event) error {
	body, err := json.Marshal(event.Document())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(event.ID),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSinkUnavailable, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.IsError() {
		return fmt.Errorf("%w: index %s: %s", domain.ErrSinkUnavailable, s.index, res.Status())
	}
	return nil
}

// LogSink writes events to the process log.
type LogSink struct {
	logger *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logging.Component(logger, "events")}
}

func (s *LogSink) Write(_ context.Context, event *events.Event) error {
	ev := logging.LevelEvent(s.logger, event.Level).
		Str("event_id", event.ID).
		Time("event_time", event.Timestamp)
	if len(event.Fields) > 0 {
		ev = ev.Interface("metadata", event.Fields)
	}
	ev.Msg(event.Message)
	return nil
}

// Handler adapts a sink to a bus subscription for sinks that do not block.
func Handler(s Sink) events.EventHandler {
	return func(event *events.Event) {
		_ = s.Write(context.Background(), event)
	}
}
