package models

import "time"

// SeenUser is a bot user recorded on their first /start.
type SeenUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstSeen time.Time `json:"first_seen"`
}
