package config

import "time"

const (
	// Matching
	// MatchingLockKey is the pg_advisory_xact_lock key that serializes every
	// requestMatch, endActiveRoom and ban transaction.
	MatchingLockKey int64 = 0x616e6f6e63686174

	// Notifications
	NotificationChannel = "chat:notifications"

	// Web clients
	AnonTokenTTL    = 72 * time.Hour
	AnonTokenIssuer = "anonchat-service"

	// External id prefixes per transport
	TelegramIDPrefix  = "tg:"
	WebSocketIDPrefix = "ws:"
)
