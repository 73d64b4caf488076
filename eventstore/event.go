package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the single representation of a domain event shared by the
// aggregate, the codec and the store. An aggregate raises an Event with
// ID/StreamID/Type/Payload/OccurredOn already set and Version assigned by
// the aggregate's own bookkeeping; RecordedAt and GlobalPosition stay zero on
// such an Event and are filled in on the Events the store returns from Load
// and LoadSince.
type Event struct {
	ID         uuid.UUID
	StreamID   uuid.UUID
	Version    int
	Type       string
	Payload    interface{}
	OccurredOn time.Time
	Metadata   json.RawMessage

	RecordedAt     time.Time
	GlobalPosition int64
}

// WithRecordedPosition returns a copy of the event with the store-assigned
// recording time and global position filled in, leaving the receiver
// unchanged.
func (e Event) WithRecordedPosition(recordedAt time.Time, globalPosition int64) Event {
	e.RecordedAt = recordedAt
	e.GlobalPosition = globalPosition
	return e
}
