package feed

import "time"

// Record is one unit of the feed. Within a session, Sequence starts at 1
// and increases without gaps; Identifier is unique per record.
type Record struct {
	Sequence   int       `json:"sequence"`
	Identifier string    `json:"identifier"`
	ProducedAt time.Time `json:"produced_at"`
	Payload    string    `json:"payload"`
}
