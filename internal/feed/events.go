// Package feed carries row change events between writers and the entity
// synchronization stores: an AMQP-backed change feed filtered by couple id,
// plus a small in-process bus for the sibling-consumer refresh convention.
package feed

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Event is one row change on a named table. Row holds the full row for
// inserts and updates, and at least {"id": ...} for deletes.
type Event struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	CoupleID  string          `json:"couple_id"`
	Row       json.RawMessage `json:"row"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals the row and stamps the event. Marshal failures are
// reported to the caller; an event without its row is useless downstream.
func NewEvent(table string, typ EventType, coupleID string, row any) (Event, error) {
	body, err := json.Marshal(row)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Table:     table,
		Type:      typ,
		CoupleID:  coupleID,
		Row:       body,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RowID extracts the row's id without decoding the full shape, enough for
// delete reconciliation.
func (e Event) RowID() string {
	var partial struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Row, &partial); err != nil {
		return ""
	}
	return partial.ID
}
