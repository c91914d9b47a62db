package failure

import (
	"encoding/json"
	"time"
)

// FailedEvent is a background task that ended on a fault without writing a
// ledger entry. Payload holds the normalized inbound event.
type FailedEvent struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	SenderID   string          `json:"sender_id"`
	Route      string          `json:"route"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
	Retries    int             `json:"retries"`
	CreatedAt  time.Time       `json:"created_at"`
}
