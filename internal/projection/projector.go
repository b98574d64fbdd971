// Package projection folds the tracking event stream into the Postgres
// conversion-stats table. Projection is asynchronous and idempotent: the
// event ID is the primary key, so replays are harmless.
package projection

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/wa-storefront/internal/infrastructure/store"
	"github.com/example/wa-storefront/internal/tracking"
)

// EventSink is the slice of the tracking store the projector writes to.
type EventSink interface {
	Insert(ctx context.Context, e store.TrackingEvent) error
}

type Projector struct {
	sink EventSink
}

func NewProjector(sink EventSink) *Projector {
	return &Projector{sink: sink}
}

// HandleEvent consumes one stream record. Records that do not parse are
// logged and dropped rather than wedging the consumer group.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var se tracking.StreamEvent
	if err := json.Unmarshal(value, &se); err != nil {
		log.Printf("[Projector] Skipping unparseable record (key=%s): %v", key, err)
		return nil
	}
	if se.EventID == "" || se.Name == "" {
		log.Printf("[Projector] Skipping record without event id or name (key=%s)", key)
		return nil
	}

	return p.sink.Insert(ctx, store.TrackingEvent{
		EventID:   se.EventID,
		Name:      se.Name,
		Value:     se.Value,
		Currency:  se.Currency,
		SourceURL: se.SourceURL,
		TrackedAt: se.TrackedAt,
	})
}
