package models

import "time"

// Picture is a stored photo with its face encoding. Roster pictures are
// enrolled ahead of time; discovered pictures are captured by the loop when
// it records a time entry.
type Picture struct {
	ID        int64     `json:"id" db:"id"`
	PersonID  int64     `json:"person_id" db:"person_id"`
	ObjectKey string    `json:"object_key" db:"object_key"`
	Encoding  []float32 `json:"-" db:"encoding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TimeEntry is one entrance/exit event with the photo that triggered it.
type TimeEntry struct {
	ID         int64     `json:"id" db:"id"`
	PersonID   int64     `json:"person_id" db:"person_id"`
	PictureID  int64     `json:"picture_id" db:"picture_id"`
	Action     EntryType `json:"action" db:"action"`
	ActionTime time.Time `json:"action_time" db:"action_time"`
}
