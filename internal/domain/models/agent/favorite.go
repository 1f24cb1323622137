package agent

import "time"

// Favorite is a saved query shown by the UI.
type Favorite struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}
