package types

import "time"

// Alert is a posture notification. The tracker creates it with a
// time-derived ID; the alert store assigns its own ID and UserID when
// persisting. Only Read is mutated after creation.
type Alert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
	Image     string    `json:"image,omitempty"` // data URL snapshot
}

// AlertInput is the body accepted by the alert store. The owning user is
// never part of it; the store derives it from the bearer token.
type AlertInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=2000"`
	Image string `json:"image,omitempty" validate:"omitempty,startswith=data:image/"`
}
