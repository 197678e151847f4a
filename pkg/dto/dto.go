// Package dto holds the wire types shared between the kiosk service and its
// HTTP/WebSocket consumers.
package dto

import "time"

// DisplayEvent is one advisory batch pushed to WebSocket display clients,
// mirroring what was published to the speaker topic.
type DisplayEvent struct {
	Messages []string  `json:"messages"`
	Time     time.Time `json:"time"`
}

// EntryResponse is one recorded time entry as served by the entries API.
type EntryResponse struct {
	ID         int64     `json:"id"`
	PersonID   int64     `json:"person_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Action     string    `json:"action"`
	ActionTime time.Time `json:"action_time"`
	PhotoURL   string    `json:"photo_url"`
}
