package models

import "time"

// Session tracks one authenticated member. LastActivity moves forward on
// every authorized request; the session manager owns all mutation.
type Session struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
