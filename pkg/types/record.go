package types

import "time"

// Record is the persisted form of one entity: its JSON encoding keyed by
// entity kind and key.
type Record struct {
	Kind      string    `json:"kind"`
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordRef identifies a persisted record.
type RecordRef struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// Changeset is the set of writes produced by one save of a unit of work.
type Changeset struct {
	Puts    []Record
	Deletes []RecordRef
}

// Len returns the number of writes in the changeset.
func (c Changeset) Len() int {
	return len(c.Puts) + len(c.Deletes)
}
