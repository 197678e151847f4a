package models

import "time"

type AppointmentStatus int

const (
	AppointmentPending AppointmentStatus = iota
	AppointmentAccepted
	AppointmentRejected
	AppointmentOngoing
	AppointmentFinalized
	AppointmentRunningLate
	AppointmentNeverHappened
)

// AppointmentWindow is how long after its start an appointment remains
// valid for granting passage.
const AppointmentWindow = time.Hour

type Appointment struct {
	ID       int64             `json:"id" db:"id"`
	PersonID int64             `json:"person_id" db:"person_id"`
	Start    time.Time         `json:"start" db:"start_at"`
	Status   AppointmentStatus `json:"status" db:"status"`
}
