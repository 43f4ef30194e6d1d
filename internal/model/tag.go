package model

// Tag is a cross-cutting label owned by a user. Names are unique per owner.
type Tag struct {
	ID     int64  `json:"id" db:"id"`
	UserID int64  `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
}
