package models

const (
	ExportStatusPending = "pending"
	ExportStatusDone    = "done"
	ExportStatusError   = "error"
)

const (
	// SessionIdleTimeoutSeconds is the maximum gap between two authorized
	// requests before the session is treated as expired.
	SessionIdleTimeoutSeconds = 180

	// SessionKeyPrefix namespaces session tokens in Redis.
	SessionKeyPrefix = "session:"

	// ExportQueueSize bounds the in-memory export queue.
	ExportQueueSize = 128

	// RateLimitRPS and RateLimitBurst are the per-caller API defaults.
	RateLimitRPS   = 10
	RateLimitBurst = 5
)
