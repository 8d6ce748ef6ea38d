package invalidation

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Op is the kind of change that made cached entries stale.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpFlush marks a bulk change where individual records are unknown.
	OpFlush Op = "flush"
)

// Event announces a change to a collection.
type Event struct {
	EventID    string    `json:"eventId"`
	Collection string    `json:"collection"`
	Op         Op        `json:"op"`
	RecordID   string    `json:"id,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent returns an event stamped with a fresh id and the current time.
func NewEvent(collection string, op Op, recordID string) Event {
	return Event{
		EventID:    uuid.NewString(),
		Collection: collection,
		Op:         op,
		RecordID:   recordID,
		At:         time.Now().UTC(),
	}
}

// Validate implements validation.Validatable.
func (e Event) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Collection, validation.Required),
		validation.Field(&e.Op, validation.Required, validation.In(OpCreate, OpUpdate, OpDelete, OpFlush)),
	)
}

// Decode parses and validates an event payload.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, errors.Wrap(err, "invalidation: decode event")
	}
	if err := e.Validate(); err != nil {
		return Event{}, errors.Wrap(err, "invalidation: invalid event")
	}
	return e, nil
}

// Encode serializes e.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalidation: invalid event")
	}
	data, err := json.Marshal(e)
	return data, errors.Wrap(err, "invalidation: encode event")
}
