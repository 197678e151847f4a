package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/models"
)

func newMockStore(t *testing.T, scope ReplayScope) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStoreWithDB(mock, scope), mock
}

func TestShouldCorrect(t *testing.T) {
	base := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local)

	cases := []struct {
		name       string
		prevAction models.EntryType
		prevTime   time.Time
		action     models.EntryType
		at         time.Time
		scope      ReplayScope
		want       bool
	}{
		{"same action corrects", models.EntryTypeEntry, base, models.EntryTypeEntry, base.Add(time.Minute), ReplayScopeLast, true},
		{"direction change appends", models.EntryTypeEntry, base, models.EntryTypeExit, base.Add(time.Minute), ReplayScopeLast, false},
		{"last scope ignores age", models.EntryTypeEntry, base.Add(-72 * time.Hour), models.EntryTypeEntry, base, ReplayScopeLast, true},
		{"same day scope, same day", models.EntryTypeExit, base, models.EntryTypeExit, base.Add(8 * time.Hour), ReplayScopeSameDay, true},
		{"same day scope, next day", models.EntryTypeEntry, base, models.EntryTypeEntry, base.Add(24 * time.Hour), ReplayScopeSameDay, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldCorrect(tc.prevAction, tc.prevTime, tc.action, tc.at, tc.scope)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRecordEntryCorrectsSameDirection(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)
	at := time.Date(2024, 3, 11, 9, 30, 0, 0, time.Local)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, action, action_time FROM time_entries").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action", "action_time"}).
			AddRow(int64(41), models.EntryTypeEntry, at.Add(-5*time.Minute)))
	mock.ExpectExec("UPDATE time_entries SET picture_id").
		WithArgs(int64(100), at, int64(41)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.RecordEntry(context.Background(), 7, 100, models.EntryTypeEntry, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntryAppendsDirectionChange(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)
	at := time.Date(2024, 3, 11, 17, 30, 0, 0, time.Local)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, action, action_time FROM time_entries").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action", "action_time"}).
			AddRow(int64(41), models.EntryTypeEntry, at.Add(-8*time.Hour)))
	mock.ExpectExec("INSERT INTO time_entries").
		WithArgs(int64(7), int64(100), models.EntryTypeExit, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.RecordEntry(context.Background(), 7, 100, models.EntryTypeExit, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntryFirstEver(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)
	at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.Local)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, action, action_time FROM time_entries").
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO time_entries").
		WithArgs(int64(9), int64(100), models.EntryTypeEntry, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.RecordEntry(context.Background(), 9, 100, models.EntryTypeEntry, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEntrySameDayScopeAppendsAcrossDays(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeSameDay)
	at := time.Date(2024, 3, 12, 9, 0, 0, 0, time.Local)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, action, action_time FROM time_entries").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action", "action_time"}).
			AddRow(int64(41), models.EntryTypeEntry, at.Add(-24*time.Hour)))
	mock.ExpectExec("INSERT INTO time_entries").
		WithArgs(int64(7), int64(100), models.EntryTypeEntry, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.RecordEntry(context.Background(), 7, 100, models.EntryTypeEntry, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimAppointmentIsOneShot(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.Local)

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(models.AppointmentOngoing, int64(7), models.AppointmentAccepted, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(models.AppointmentOngoing, int64(7), models.AppointmentAccepted, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.ClaimAppointment(context.Background(), 7, models.AppointmentAccepted, models.AppointmentOngoing, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// The first claim consumed the accepted appointment.
	ok, err = store.ClaimAppointment(context.Background(), 7, models.AppointmentAccepted, models.AppointmentOngoing, now)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPersonNotFound(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)

	mock.ExpectQuery("SELECT id, identification_document").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	p, err := store.GetPerson(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRosterByProfileEmployees(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)

	mock.ExpectQuery("FROM pictures pic JOIN persons p").
		WithArgs(models.RoleEmployee).
		WillReturnRows(pgxmock.NewRows([]string{"person_id", "id", "encoding"}).
			AddRow(int64(7), int64(70), pgvector.NewVector([]float32{0.1, 0.2})).
			AddRow(int64(8), int64(81), pgvector.NewVector([]float32{0.3, 0.4})))

	roster, err := store.RosterByProfile(context.Background(), models.ProfileEmployeesActive)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, int64(7), roster[0].PersonID)
	assert.Equal(t, int64(70), roster[0].PictureID)
	assert.Equal(t, []float32{0.1, 0.2}, roster[0].Encoding)
}

func TestGetSettings(t *testing.T) {
	store, mock := newMockStore(t, ReplayScopeLast)

	mock.ExpectQuery("FROM kiosk_settings").
		WillReturnRows(pgxmock.NewRows([]string{"profile", "hours_start", "hours_end"}).
			AddRow("employees_active", "08:30", "18:00"))

	profile, hours, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ProfileEmployeesActive, profile)
	assert.Equal(t, 8*60+30, hours.Start)
	assert.Equal(t, 18*60, hours.End)
}
