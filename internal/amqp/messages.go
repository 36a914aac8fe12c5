package amqp

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a change to the record collection.
type EventType string

const (
	EventSnapshotSaved EventType = "snapshot.saved"
	EventClientUpdated EventType = "client.updated"
	EventClientDeleted EventType = "client.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSnapshotSaved, EventClientUpdated, EventClientDeleted:
		return true
	}
	return false
}

// LedgerEvent announces that the persisted records changed. It only carries
// identifiers; consumers re-read the store.
type LedgerEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Client     string    `json:"client"`
	SnapshotID int64     `json:"snapshot_id,omitempty"`
	Affected   int       `json:"affected,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps an event with a fresh ULID and the current time.
func NewLedgerEvent(typ EventType, client string) *LedgerEvent {
	now := time.Now()
	return &LedgerEvent{
		EventID:   ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:      typ,
		Client:    client,
		Timestamp: now,
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
