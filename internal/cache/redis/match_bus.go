package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const (
	matchLiveChannel  = "match:live"
	matchEventsStream = "match:events"

	// streamMaxLen is the approximate maximum length for the event stream,
	// enforced via XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// matchEventWire is the JSON shape of a match event on the bus. Kept separate
// from domain.MatchEvent so the stream format stays stable.
type matchEventWire struct {
	Type     string    `json:"type"`
	MatchID  uuid.UUID `json:"match_id"`
	SimIndex int       `json:"sim_index"`
	Winner   string    `json:"winner,omitempty"`
	At       time.Time `json:"at"`
}

func toWire(e domain.MatchEvent) matchEventWire {
	return matchEventWire{
		Type:     string(e.Type),
		MatchID:  e.MatchID,
		SimIndex: e.SimIndex,
		Winner:   e.Winner,
		At:       e.At,
	}
}

func fromWire(w matchEventWire) domain.MatchEvent {
	return domain.MatchEvent{
		Type:     domain.MatchEventType(w.Type),
		MatchID:  w.MatchID,
		SimIndex: w.SimIndex,
		Winner:   w.Winner,
		At:       w.At,
	}
}

// MatchBus implements domain.MatchBus using Redis Pub/Sub for live fanout and
// a capped Redis Stream for replayable history.
type MatchBus struct {
	rdb *redis.Client
}

// NewMatchBus creates a MatchBus backed by the given Client.
func NewMatchBus(c *Client) *MatchBus {
	return &MatchBus{rdb: c.Underlying()}
}

// Publish sends a match event to live subscribers and appends it to the
// history stream.
func (mb *MatchBus) Publish(ctx context.Context, event domain.MatchEvent) error {
	data, err := json.Marshal(toWire(event))
	if err != nil {
		return fmt.Errorf("redis: marshal match event: %w", err)
	}

	pipe := mb.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: matchEventsStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": data,
		},
	})
	pipe.Publish(ctx, matchLiveChannel, data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish match event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of live match events. The subscription is
// closed when the context is cancelled; the returned channel is closed at
// that point as well. Payloads that fail to decode are dropped.
func (mb *MatchBus) Subscribe(ctx context.Context) (<-chan domain.MatchEvent, error) {
	pubsub := mb.rdb.Subscribe(ctx, matchLiveChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", matchLiveChannel, err)
	}

	out := make(chan domain.MatchEvent, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var w matchEventWire
				if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
					continue
				}
				select {
				case out <- fromWire(w):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// History reads up to count events from the stream after lastID. Use "" (or
// "0") as lastID to read from the beginning. It returns an empty slice when
// nothing is available.
func (mb *MatchBus) History(ctx context.Context, lastID string, count int) ([]domain.MatchEventEntry, error) {
	start := "-"
	if lastID != "" && lastID != "0" && lastID != "0-0" {
		// Exclusive range start, so the caller's last seen entry is skipped.
		start = "(" + lastID
	}

	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = mb.rdb.XRangeN(ctx, matchEventsStream, start, "+", int64(count)).Result()
	} else {
		msgs, err = mb.rdb.XRange(ctx, matchEventsStream, start, "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis: match history: %w", err)
	}

	var entries []domain.MatchEventEntry
	for _, msg := range msgs {
		payload, ok := msg.Values["payload"]
		if !ok {
			continue
		}

		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}

		var w matchEventWire
		if err := json.Unmarshal(data, &w); err != nil {
			continue
		}
		entries = append(entries, domain.MatchEventEntry{
			ID:    msg.ID,
			Event: fromWire(w),
		})
	}

	return entries, nil
}

// Compile-time interface check.
var _ domain.MatchBus = (*MatchBus)(nil)
