// Package gate decides whether a recognized person may pass when the kiosk
// runs in appointment mode.
package gate

import (
	"context"
	"time"

	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// Claimer atomically transitions a person's best eligible appointment from
// one status to another, reporting whether such an appointment existed.
type Claimer interface {
	ClaimAppointment(ctx context.Context, personID int64, from, to models.AppointmentStatus, now time.Time) (bool, error)
}

// AppointmentGate admits a person only while they hold an appointment in the
// right state. Entry consumes an accepted appointment; exit closes the
// ongoing one. Each claim is one-shot: a second entry attempt finds no
// accepted appointment left and is refused.
type AppointmentGate struct {
	claimer Claimer
}

func New(claimer Claimer) *AppointmentGate {
	return &AppointmentGate{claimer: claimer}
}

// Admit checks and advances the person's appointment for the given action.
// Returns false when no eligible appointment exists.
func (g *AppointmentGate) Admit(ctx context.Context, personID int64, action models.EntryType, now time.Time) (bool, error) {
	var from, to models.AppointmentStatus
	switch action {
	case models.EntryTypeExit:
		from, to = models.AppointmentOngoing, models.AppointmentFinalized
	default:
		from, to = models.AppointmentAccepted, models.AppointmentOngoing
	}

	ok, err := g.claimer.ClaimAppointment(ctx, personID, from, to, now)
	if err != nil {
		return false, err
	}
	if !ok {
		observability.PolicyRejections.WithLabelValues("appointment").Inc()
	}
	return ok, nil
}
