package models

import (
	"fmt"
	"time"
)

type EntryType string

const (
	EntryTypeEntry EntryType = "entry"
	EntryTypeExit  EntryType = "exit"
)

// LocalCameraAddress marks a camera descriptor that should use the host's
// capture device instead of a network stream.
const LocalCameraAddress = "0.0.0.0"

// Camera is the persisted descriptor of one kiosk camera. It is resolved
// once at loop startup and read-only afterwards.
type Camera struct {
	Name      string    `json:"name" db:"name"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	User      string    `json:"user" db:"username"`
	Password  string    `json:"-" db:"password"`
	Route     string    `json:"route" db:"route"`
	EntryType EntryType `json:"entry_type" db:"entry_type"`
	AskMask   bool      `json:"ask_mask" db:"ask_mask"`
	AskTemp   bool      `json:"ask_temp" db:"ask_temp"`
}

// IsLocal reports whether the camera uses the local capture device.
func (c Camera) IsLocal() bool {
	return c.IPAddress == LocalCameraAddress
}

// StreamURL builds the RTSP address for a network camera.
func (c Camera) StreamURL() string {
	return fmt.Sprintf("rtsp://%s:%s@%s:554/%s", c.User, c.Password, c.IPAddress, c.Route)
}

// OperatingHours is a daily time-of-day window [Start, End), in minutes
// since midnight. Entries outside the window are refused; exits are always
// allowed.
type OperatingHours struct {
	Start int
	End   int
}

// ParseOperatingHours parses "HH:MM" bounds.
func ParseOperatingHours(start, end string) (OperatingHours, error) {
	s, err := parseMinutes(start)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("parse start time: %w", err)
	}
	e, err := parseMinutes(end)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("parse end time: %w", err)
	}
	return OperatingHours{Start: s, End: e}, nil
}

func parseMinutes(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's time of day falls inside the window.
func (h OperatingHours) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= h.Start && m < h.End
}
