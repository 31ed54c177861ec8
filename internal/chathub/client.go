package chathub

import "anonchat/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// The hub only pushes notifications into it; room state lives in storage.
type Client interface {
	// GetUserID returns the pseudonym the client delivers to.
	GetUserID() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// notifications intended for this specific client.
	GetSendChannel() chan<- models.Notification

	// Run starts the client's pumps.
	Run()
	// Close shuts the client down. It must be safe to call more than once.
	Close()
}
