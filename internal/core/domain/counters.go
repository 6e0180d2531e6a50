package domain

// DerivedCounters is the aggregate UI-facing state folded together by the
// realtime aggregator. It is a value type: consumers always receive copies,
// never a reference into the aggregator's internals.
type DerivedCounters struct {
	UnreadMessages        int64             `json:"unread_messages"`
	HasPendingApplication bool              `json:"has_pending_application"`
	ApplicationStatus     ApplicationStatus `json:"application_status,omitempty"`
	OnlineUsers           int64             `json:"online_users"`
}
