package model

import "time"

// User is the owner of templates, projects, and tags. Authentication itself
// lives outside this module; the row only anchors ownership chains.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
