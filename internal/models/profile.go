package models

import "fmt"

// Profile selects which subset of stored pictures forms the active roster.
type Profile int

const (
	ProfileAllActive Profile = iota
	ProfileEmployeesActive
	ProfileAcceptedAppointments
)

func (p Profile) String() string {
	switch p {
	case ProfileAllActive:
		return "all_active"
	case ProfileEmployeesActive:
		return "employees_active"
	case ProfileAcceptedAppointments:
		return "accepted_appointments"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// ParseProfile maps the persisted setting value to a Profile. Unknown
// values fall back to AllActive, matching the collaborator's behavior for
// a missing or garbled setting.
func ParseProfile(v string) Profile {
	switch v {
	case "employees_active":
		return ProfileEmployeesActive
	case "accepted_appointments":
		return ProfileAcceptedAppointments
	default:
		return ProfileAllActive
	}
}
