package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/models"
)

type claimCall struct {
	personID int64
	from, to models.AppointmentStatus
}

type fakeClaimer struct {
	calls []claimCall
	ok    bool
}

func (f *fakeClaimer) ClaimAppointment(_ context.Context, personID int64, from, to models.AppointmentStatus, _ time.Time) (bool, error) {
	f.calls = append(f.calls, claimCall{personID, from, to})
	return f.ok, nil
}

func TestAdmitEntryConsumesAcceptedAppointment(t *testing.T) {
	claimer := &fakeClaimer{ok: true}
	g := New(claimer)

	ok, err := g.Admit(context.Background(), 7, models.EntryTypeEntry, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, claimer.calls, 1)
	assert.Equal(t, models.AppointmentAccepted, claimer.calls[0].from)
	assert.Equal(t, models.AppointmentOngoing, claimer.calls[0].to)
}

func TestAdmitExitClosesOngoingAppointment(t *testing.T) {
	claimer := &fakeClaimer{ok: true}
	g := New(claimer)

	ok, err := g.Admit(context.Background(), 7, models.EntryTypeExit, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, claimer.calls, 1)
	assert.Equal(t, models.AppointmentOngoing, claimer.calls[0].from)
	assert.Equal(t, models.AppointmentFinalized, claimer.calls[0].to)
}

func TestAdmitRefusesWithoutAppointment(t *testing.T) {
	claimer := &fakeClaimer{ok: false}
	g := New(claimer)

	ok, err := g.Admit(context.Background(), 7, models.EntryTypeEntry, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
