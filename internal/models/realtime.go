package models

// NotificationType tells a transport which user-facing text to render.
type NotificationType string

const (
	NotificationMatchFound  NotificationType = "match_found"
	NotificationPartnerLeft NotificationType = "partner_left"
	NotificationMessage     NotificationType = "message"
	// NotificationStatus answers a command sent by the recipient itself.
	NotificationStatus NotificationType = "status"
)

// Notification is an outbound event addressed to one pseudonym. It travels
// over the pub/sub bus so any process may produce it.
type Notification struct {
	Type      NotificationType `json:"type"`
	Recipient string           `json:"recipient"`
	RoomID    string           `json:"room_id,omitempty"`
	MessageID uint             `json:"message_id,omitempty"`
	Text      string           `json:"text,omitempty"`
}

// ChatMessage is the JSON frame exchanged with web clients.
type ChatMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}
