package models

import "time"

type PersonRole int

const (
	RolePerson PersonRole = iota
	RoleEmployee
	RoleAdmin
	RoleSuperAdmin
)

type Person struct {
	ID                     int64      `json:"id" db:"id"`
	IdentificationDocument string     `json:"identification_document" db:"identification_document"`
	FirstName              string     `json:"first_name" db:"first_name"`
	LastName               string     `json:"last_name" db:"last_name"`
	Role                   PersonRole `json:"role" db:"role"`
	Active                 bool       `json:"active" db:"active"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// RosterEntry pairs a person with one of their stored face encodings.
// Roster snapshots are rebuilt wholesale on every refresh cycle.
type RosterEntry struct {
	PersonID  int64
	PictureID int64
	Encoding  []float32
}
