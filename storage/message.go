package storage

// Message delivery statuses. Outbound messages are created as
// StatusSending before any network call and advance to StatusSent or
// StatusFailed, never backwards. Inbound messages are created directly as
// StatusDelivered.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// MessageTypeText is the only payload type the core exchanges today; the
// field is kept on the wire for file transfer payloads.
const MessageTypeText = "text"

// Message is one locally stored chat message, owned by the conversation its
// QueueID names. Only the path that created a message mutates it.
type Message struct {
	ID         string `json:"id"`
	QueueID    string `json:"queue_id"`
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	IsOutbound bool   `json:"is_outbound"`
}
