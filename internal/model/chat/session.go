package chat

import "time"

// Session describes a conversation keyed by a caller-supplied identifier.
// The transcript itself stays inside the session store.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Turns     int       `json:"turns"`
}
