package domain

import "encoding/json"

// ChangeType tags a change-notification event.
type ChangeType string

const (
	ChangeInserted ChangeType = "inserted"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
)

// Topics the engine subscribes to. Each maps to one backend table or
// presence channel; delivery is at-least-once, so handlers must tolerate
// duplicates.
const (
	TopicMessages     = "messages"
	TopicApplications = "seller_applications"
	TopicPresence     = "presence"
)

// ChangeEvent is a single change-notification delivery. New and Old carry
// the raw row payloads; either may be empty depending on the change type.
type ChangeEvent struct {
	Type  ChangeType      `json:"type"`
	Topic string          `json:"topic"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}
