package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
)

// ReplayScope controls which prior time entry the replay guard compares
// against before recording a new one.
type ReplayScope string

const (
	// ReplayScopeLast corrects the immediately preceding entry when it has
	// the same action, regardless of its age.
	ReplayScopeLast ReplayScope = "last"
	// ReplayScopeSameDay only corrects when the preceding same-action
	// entry was recorded on the same calendar day.
	ReplayScopeSameDay ReplayScope = "same_day"
)

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db          DB
	pool        *pgxpool.Pool
	replayScope ReplayScope
}

func NewPostgresStore(cfg config.DatabaseConfig, scope ReplayScope) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{db: pool, pool: pool, replayScope: scope}, nil
}

// NewPostgresStoreWithDB wraps an existing connection-like value (tests).
func NewPostgresStoreWithDB(db DB, scope ReplayScope) *PostgresStore {
	return &PostgresStore{db: db, replayScope: scope}
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return nil
}

// --- Persons ---

func (s *PostgresStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p := &models.Person{}
	err := s.db.QueryRow(ctx,
		`SELECT id, identification_document, first_name, last_name, role, active, created_at
		 FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.IdentificationDocument, &p.FirstName, &p.LastName, &p.Role, &p.Active, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// --- Kiosk configuration ---

func (s *PostgresStore) GetCamera(ctx context.Context, name string) (*models.Camera, error) {
	c := &models.Camera{}
	err := s.db.QueryRow(ctx,
		`SELECT name, ip_address, username, password, route, entry_type, ask_mask, ask_temp
		 FROM cameras WHERE name = $1`, name,
	).Scan(&c.Name, &c.IPAddress, &c.User, &c.Password, &c.Route, &c.EntryType, &c.AskMask, &c.AskTemp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get camera: %w", err)
	}
	return c, nil
}

// GetSettings returns the active roster profile and the operating hours.
func (s *PostgresStore) GetSettings(ctx context.Context) (models.Profile, models.OperatingHours, error) {
	var profileStr, startStr, endStr string
	err := s.db.QueryRow(ctx,
		`SELECT profile, hours_start, hours_end FROM kiosk_settings WHERE id = 1`,
	).Scan(&profileStr, &startStr, &endStr)
	if err != nil {
		return 0, models.OperatingHours{}, fmt.Errorf("get settings: %w", err)
	}

	hours, err := models.ParseOperatingHours(startStr, endStr)
	if err != nil {
		return 0, models.OperatingHours{}, fmt.Errorf("get settings: %w", err)
	}

	return models.ParseProfile(profileStr), hours, nil
}

// --- Roster ---

const rosterColumns = `pic.person_id, pic.id, pic.encoding`

// RosterByProfile returns the full set of eligible face encodings for the
// given profile. The caller replaces its previous snapshot wholesale.
func (s *PostgresStore) RosterByProfile(ctx context.Context, profile models.Profile) ([]models.RosterEntry, error) {
	var query string
	var args []any

	switch profile {
	case models.ProfileEmployeesActive:
		query = `SELECT ` + rosterColumns + `
			FROM pictures pic JOIN persons p ON p.id = pic.person_id
			WHERE p.active AND p.role >= $1
			ORDER BY pic.id`
		args = []any{models.RoleEmployee}
	case models.ProfileAcceptedAppointments:
		query = `SELECT DISTINCT ` + rosterColumns + `
			FROM pictures pic
			JOIN persons p ON p.id = pic.person_id
			JOIN appointments a ON a.person_id = p.id
			WHERE p.active AND a.status = $1
			ORDER BY pic.id`
		args = []any{models.AppointmentAccepted}
	default:
		query = `SELECT ` + rosterColumns + `
			FROM pictures pic JOIN persons p ON p.id = pic.person_id
			WHERE p.active
			ORDER BY pic.id`
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("roster query (%s): %w", profile, err)
	}
	defer rows.Close()

	var roster []models.RosterEntry
	for rows.Next() {
		var entry models.RosterEntry
		var vec pgvector.Vector
		if err := rows.Scan(&entry.PersonID, &entry.PictureID, &vec); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		entry.Encoding = vec.Slice()
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

// --- Pictures ---

func (s *PostgresStore) AddPicture(ctx context.Context, personID int64, objectKey string, encoding []float32) (*models.Picture, error) {
	p := &models.Picture{
		PersonID:  personID,
		ObjectKey: objectKey,
		Encoding:  encoding,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO pictures (person_id, object_key, encoding) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		personID, objectKey, pgvector.NewVector(encoding),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add picture: %w", err)
	}
	return p, nil
}

// --- Time entries ---

// RecordEntry stores a time entry for a person, applying the replay guard:
// when the person's most recent stored entry carries the same action, that
// entry is corrected in place instead of a duplicate being appended. The
// check and the write happen in one transaction.
func (s *PostgresStore) RecordEntry(ctx context.Context, personID, pictureID int64, action models.EntryType, at time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record entry: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prevID int64
	var prevAction models.EntryType
	var prevTime time.Time
	err = tx.QueryRow(ctx,
		`SELECT id, action, action_time FROM time_entries
		 WHERE person_id = $1 ORDER BY action_time DESC LIMIT 1 FOR UPDATE`,
		personID,
	).Scan(&prevID, &prevAction, &prevTime)
	switch {
	case err == pgx.ErrNoRows:
		// first entry ever for this person
	case err != nil:
		return fmt.Errorf("load previous entry: %w", err)
	}

	if err == nil && shouldCorrect(prevAction, prevTime, action, at, s.replayScope) {
		_, err = tx.Exec(ctx,
			`UPDATE time_entries SET picture_id = $1, action_time = $2 WHERE id = $3`,
			pictureID, at, prevID)
		if err != nil {
			return fmt.Errorf("correct entry: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO time_entries (person_id, picture_id, action, action_time) VALUES ($1, $2, $3, $4)`,
			personID, pictureID, action, at)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record entry: %w", err)
	}
	return nil
}

// shouldCorrect decides whether the new entry replaces the previous one.
func shouldCorrect(prevAction models.EntryType, prevTime time.Time, action models.EntryType, at time.Time, scope ReplayScope) bool {
	if prevAction != action {
		return false
	}
	if scope == ReplayScopeSameDay {
		py, pm, pd := prevTime.Local().Date()
		ny, nm, nd := at.Local().Date()
		return py == ny && pm == nm && pd == nd
	}
	return true
}

// EntryRecord is a time entry joined with display data for the API.
type EntryRecord struct {
	models.TimeEntry
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ObjectKey string `json:"object_key"`
}

func (s *PostgresStore) RecentEntries(ctx context.Context, limit int) ([]EntryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT te.id, te.person_id, te.picture_id, te.action, te.action_time,
		        p.first_name, p.last_name, pic.object_key
		 FROM time_entries te
		 JOIN persons p ON p.id = te.person_id
		 JOIN pictures pic ON pic.id = te.picture_id
		 ORDER BY te.action_time DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryRecord
	for rows.Next() {
		var e EntryRecord
		if err := rows.Scan(&e.ID, &e.PersonID, &e.PictureID, &e.Action, &e.ActionTime,
			&e.FirstName, &e.LastName, &e.ObjectKey); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetEntryPhotoKey(ctx context.Context, entryID int64) (string, error) {
	var key string
	err := s.db.QueryRow(ctx,
		`SELECT pic.object_key FROM time_entries te
		 JOIN pictures pic ON pic.id = te.picture_id
		 WHERE te.id = $1`, entryID,
	).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get entry photo key: %w", err)
	}
	return key, nil
}

// --- Appointments ---

// ClaimAppointment transitions the person's earliest appointment in status
// `from` whose validity window [start, start+1h] contains now, moving it to
// status `to`. The check and the transition are one statement, so granting
// passage consumes the appointment exactly once.
func (s *PostgresStore) ClaimAppointment(ctx context.Context, personID int64, from, to models.AppointmentStatus, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE appointments SET status = $1
		 WHERE id = (
		   SELECT id FROM appointments
		   WHERE person_id = $2 AND status = $3
		     AND start_at <= $4 AND $4 <= start_at + interval '1 hour'
		   ORDER BY start_at LIMIT 1
		 )`,
		to, personID, from, now)
	if err != nil {
		return false, fmt.Errorf("claim appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
