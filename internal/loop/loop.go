// Package loop implements the kiosk's recognition and door-arbitration state
// machine. One goroutine pulls frames and runs the mask, face and temperature
// checks on their own cadences, debounces the results, and decides whether to
// open the door.
package loop

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/kiosk/internal/camera"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/internal/sensorbus"
	"github.com/your-org/kiosk/internal/vision"
)

// Clock abstracts wall time so the state machine can be driven by a
// simulated clock in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FrameSource hands out the camera's latest frame without blocking.
type FrameSource interface {
	Latest() (*camera.Frame, error)
}

// MaskClassifier reports whether the primary face in a frame wears a mask.
type MaskClassifier interface {
	Classify(img image.Image) (vision.MaskVerdict, error)
}

// FaceMatcher identifies the primary face against the roster.
type FaceMatcher interface {
	Match(img image.Image, entries []models.RosterEntry) (vision.MatchResult, error)
}

// Bus is the slice of the sensor bus the loop consumes.
type Bus interface {
	Publish(ctx context.Context, topic, payload string) error
	ReadLatest(ctx context.Context, topic string) ([]sensorbus.Message, error)
}

// RosterSource provides the profile-selected matching set and the kiosk
// operating settings.
type RosterSource interface {
	Refresh(ctx context.Context) error
	Current() *roster.Snapshot
}

// Recorder persists a granted welcome: the evidence picture and the time
// entry pointing at it.
type Recorder interface {
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	AddPicture(ctx context.Context, personID int64, objectKey string, encoding []float32) (*models.Picture, error)
	RecordEntry(ctx context.Context, personID, pictureID int64, action models.EntryType, at time.Time) error
}

// PhotoSink stores the evidence JPEG.
type PhotoSink interface {
	PutPhoto(ctx context.Context, key string, data []byte) error
}

// Gate arbitrates appointment-profile passage.
type Gate interface {
	Admit(ctx context.Context, personID int64, action models.EntryType, now time.Time) (bool, error)
}

// Display receives the advisory batch as it is flushed to the speaker topic.
// Optional; failures are the display's problem.
type Display interface {
	Broadcast(messages []string)
}

// TempVerdict is the tri-state outcome of a temperature poll.
type TempVerdict int

const (
	TempNoReading TempVerdict = iota
	TempBelowThreshold
	TempTooHigh
)

// Status is a read-only snapshot of the loop for the status API.
type Status struct {
	MaskDetected   bool      `json:"mask_detected"`
	FaceRecognized bool      `json:"face_recognized"`
	TempOK         bool      `json:"temp_ok"`
	PersonID       int64     `json:"person_id,omitempty"`
	LastWelcome    time.Time `json:"last_welcome"`
	Profile        string    `json:"profile"`
	RosterSize     int       `json:"roster_size"`
	Pending        []string  `json:"pending,omitempty"`
}

type Loop struct {
	cfg config.LoopConfig
	cam models.Camera

	temperatureTopic string
	speakerTopic     string
	doorTopic        string

	frames   FrameSource
	mask     MaskClassifier
	matcher  FaceMatcher
	bus      Bus
	roster   RosterSource
	recorder Recorder
	photos   PhotoSink
	gate     Gate
	display  Display
	clock    Clock

	state             DetectionState
	pending           []string
	lastRosterRefresh time.Time

	statusMu   sync.Mutex
	lastStatus Status
}

type Deps struct {
	Frames   FrameSource
	Mask     MaskClassifier
	Matcher  FaceMatcher
	Bus      Bus
	Roster   RosterSource
	Recorder Recorder
	Photos   PhotoSink
	Gate     Gate
	Display  Display
	Clock    Clock
}

func New(cfg config.LoopConfig, nats config.NATSConfig, cam models.Camera, deps Deps) *Loop {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}

	l := &Loop{
		cfg:              cfg,
		cam:              cam,
		temperatureTopic: nats.TemperatureTopic,
		speakerTopic:     nats.SpeakerTopic,
		doorTopic:        nats.DoorTopic,
		frames:           deps.Frames,
		mask:             deps.Mask,
		matcher:          deps.Matcher,
		bus:              deps.Bus,
		roster:           deps.Roster,
		recorder:         deps.Recorder,
		photos:           deps.Photos,
		gate:             deps.Gate,
		display:          deps.Display,
		clock:            clock,
	}
	l.state.Reset(clock.Now())
	return l
}

// Run drives Step until the context is cancelled. Iteration errors are
// logged; nothing inside the steady state takes the loop down.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.FrameDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Step(ctx); err != nil {
				slog.Error("loop iteration failed", "error", err)
			}
		}
	}
}

// Step runs exactly one iteration of the state machine. The detector order
// is load-bearing: mask before face before temperature before the door
// decision, because mask state gates whether face matching runs at all.
func (l *Loop) Step(ctx context.Context) error {
	now := l.clock.Now()
	defer l.captureStatus()

	frame, err := l.frames.Latest()
	if err != nil {
		observability.FrameFailures.Inc()
		return nil
	}

	l.flush(ctx)

	if l.lastRosterRefresh.IsZero() || intervalPassed(now, l.lastRosterRefresh, l.cfg.RosterRefresh) {
		// A failed refresh keeps the previous snapshot; retry next cadence,
		// not next frame.
		l.lastRosterRefresh = now
		if err := l.roster.Refresh(ctx); err != nil {
			slog.Warn("roster refresh failed, keeping previous snapshot", "error", err)
		}
	}
	snap := l.roster.Current()
	if snap == nil {
		return nil
	}

	if l.state.MaskDetected && intervalPassed(now, l.state.MaskSeenAt, l.cfg.FlagWindow) {
		l.state.MaskDetected = false
	}
	if l.state.FaceRecognized && intervalPassed(now, l.state.FaceSeenAt, l.cfg.FlagWindow) {
		// The recognition went stale; whoever stands here now must be
		// re-identified before the door may open for them.
		l.state.FaceRecognized = false
		l.state.PersonID = 0
		l.state.BestIndex = 0
		l.state.Encoding = nil
		l.state.Frame = nil
	}

	if !intervalPassed(now, l.state.LastWelcome, l.cfg.Cooldown) {
		return nil
	}

	if !intervalPassed(now, l.state.LastMaskCheck, l.cfg.MaskInterval) {
		return nil
	}
	l.state.LastMaskCheck = now

	observability.DetectorRuns.WithLabelValues("mask").Inc()
	verdict, err := l.mask.Classify(frame.Image)
	if err != nil {
		return fmt.Errorf("mask check: %w", err)
	}
	if verdict == vision.MaskNoFace {
		return nil
	}

	if l.cam.EntryType == models.EntryTypeEntry && !snap.Hours.Contains(now) {
		observability.PolicyRejections.WithLabelValues("hours").Inc()
		l.queue(MsgOutsideHours)
		return nil
	}

	switch verdict {
	case vision.MaskPresent:
		l.state.MaskDetected = true
		l.state.MaskSeenAt = now
		// Matching needs an uncovered face, so ask for it while unknown.
		if !l.state.FaceRecognized {
			l.queue(MsgMaskDetected)
		}

	case vision.MaskAbsent:
		elapsed := now.Sub(l.state.LastFaceCheck)
		due := elapsed > l.cfg.FaceInterval
		forced := elapsed > time.Duration(l.cfg.ForceFaceRefresh)*l.cfg.FaceInterval
		if due && (!l.state.FaceRecognized || forced) {
			l.state.LastFaceCheck = now
			l.matchFace(frame, snap, now)
		} else if l.state.FaceRecognized && l.cam.AskMask {
			l.queue(MsgMaskNotDetected)
		}
	}

	if l.cam.AskTemp && intervalPassed(now, l.state.LastTempCheck, l.cfg.TempInterval) {
		l.state.LastTempCheck = now
		// Every poll overwrites the flag: a stale or missing reading
		// revokes a clearance from an earlier poll.
		switch l.readTemperature(ctx, now) {
		case TempBelowThreshold:
			l.state.TempOK = true
		case TempTooHigh:
			l.state.TempOK = false
			l.queue(MsgTempTooHigh)
		case TempNoReading:
			l.state.TempOK = false
			l.queue(MsgTakeTemperature)
		}
	}

	if l.state.FaceRecognized &&
		(l.state.MaskDetected || !l.cam.AskMask) &&
		(l.state.TempOK || !l.cam.AskTemp) {
		l.decide(ctx, snap, now)
	}

	return nil
}

func (l *Loop) matchFace(frame *camera.Frame, snap *roster.Snapshot, now time.Time) {
	observability.DetectorRuns.WithLabelValues("face").Inc()
	start := time.Now()
	res, err := l.matcher.Match(frame.Image, snap.Entries)
	observability.InferenceDuration.WithLabelValues("face").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("face match failed", "error", err)
		return
	}
	if !res.FaceFound {
		return
	}

	if !res.Matched {
		l.queue(MsgUnknownPerson)
		return
	}

	l.state.FaceRecognized = true
	l.state.FaceSeenAt = now
	l.state.PersonID = res.PersonID
	l.state.BestIndex = res.BestIndex
	l.state.Encoding = res.Encoding
	l.state.Frame = frame
	l.queue(MsgPersonRecognized)

	if l.state.MaskDetected {
		// The mask flag is from an earlier sighting; the face is bare now.
		l.queue(MsgPutMaskOn)
	} else if l.cam.AskMask {
		l.queue(MsgMaskNotDetected)
	}
}

// readTemperature polls the sensor topic and inspects only the newest
// reading. Any failure along the way degrades to "no reading".
func (l *Loop) readTemperature(ctx context.Context, now time.Time) TempVerdict {
	observability.DetectorRuns.WithLabelValues("temp").Inc()

	msgs, err := l.bus.ReadLatest(ctx, l.temperatureTopic)
	if err != nil {
		observability.BusFailures.WithLabelValues("read_temperature").Inc()
		slog.Warn("temperature read failed", "error", err)
		return TempNoReading
	}
	if len(msgs) == 0 {
		return TempNoReading
	}

	last := msgs[len(msgs)-1]
	if now.Sub(last.Timestamp) > l.cfg.TempFreshness {
		return TempNoReading
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(last.Body), 64)
	if err != nil {
		slog.Warn("unparseable temperature payload", "payload", last.Body)
		return TempNoReading
	}

	if value >= l.cfg.TempThreshold {
		return TempTooHigh
	}
	return TempBelowThreshold
}

// decide runs the door arbitration for the person currently held in state.
// Whatever the outcome, the detection state is fully reset afterwards so the
// next attempt starts from the cooldown.
func (l *Loop) decide(ctx context.Context, snap *roster.Snapshot, now time.Time) {
	defer l.state.Reset(now)

	openDoor := true
	if snap.Profile == models.ProfileAcceptedAppointments {
		ok, err := l.gate.Admit(ctx, l.state.PersonID, l.cam.EntryType, now)
		if err != nil {
			slog.Error("appointment gate failed", "person_id", l.state.PersonID, "error", err)
			ok = false
		}
		openDoor = ok
	}

	if !openDoor {
		l.queue(MsgAppointmentRequired)
		return
	}

	if err := l.bus.Publish(ctx, l.doorTopic, DoorOpenPayload); err != nil {
		observability.BusFailures.WithLabelValues("open_door").Inc()
		slog.Error("door-open publish failed", "error", err)
		return
	}
	observability.DoorOpens.Inc()
	l.queue(MsgWelcome)

	if err := l.recordWelcome(ctx, now); err != nil {
		slog.Error("record time entry failed", "person_id", l.state.PersonID, "error", err)
	}
}

func (l *Loop) recordWelcome(ctx context.Context, now time.Time) error {
	key := fmt.Sprintf("entries/%s.jpg", uuid.NewString())
	if l.state.Frame != nil {
		if err := l.photos.PutPhoto(ctx, key, l.state.Frame.JPEG); err != nil {
			return fmt.Errorf("store evidence photo: %w", err)
		}
	}

	pic, err := l.recorder.AddPicture(ctx, l.state.PersonID, key, l.state.Encoding)
	if err != nil {
		return fmt.Errorf("store evidence picture: %w", err)
	}

	if err := l.recorder.RecordEntry(ctx, l.state.PersonID, pic.ID, l.cam.EntryType, now); err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	observability.EntriesRecorded.WithLabelValues(string(l.cam.EntryType)).Inc()

	if person, err := l.recorder.GetPerson(ctx, l.state.PersonID); err == nil && person != nil {
		slog.Info("welcome granted",
			"person_id", person.ID,
			"name", person.FullName(),
			"action", l.cam.EntryType)
	}
	return nil
}

// queue appends one advisory for the next flush. Duplicates within one batch
// are collapsed.
func (l *Loop) queue(msg string) {
	for _, m := range l.pending {
		if m == msg {
			return
		}
	}
	l.pending = append(l.pending, msg)
}

// flush publishes the pending advisory batch, newline-joined, before any
// detector logic runs. Publish failure drops the batch; advisories carry no
// correctness weight.
func (l *Loop) flush(ctx context.Context) {
	if len(l.pending) == 0 {
		return
	}

	batch := l.pending
	l.pending = nil

	if err := l.bus.Publish(ctx, l.speakerTopic, strings.Join(batch, "\n")); err != nil {
		observability.BusFailures.WithLabelValues("speaker").Inc()
		slog.Warn("speaker publish failed", "error", err)
	}
	if l.display != nil {
		l.display.Broadcast(batch)
	}
}

func (l *Loop) captureStatus() {
	st := Status{
		MaskDetected:   l.state.MaskDetected,
		FaceRecognized: l.state.FaceRecognized,
		TempOK:         l.state.TempOK,
		PersonID:       l.state.PersonID,
		LastWelcome:    l.state.LastWelcome,
		Pending:        append([]string(nil), l.pending...),
	}
	if snap := l.roster.Current(); snap != nil {
		st.Profile = snap.Profile.String()
		st.RosterSize = len(snap.Entries)
	}

	l.statusMu.Lock()
	l.lastStatus = st
	l.statusMu.Unlock()
}

// StatusSnapshot returns the loop state observed at the end of the last
// iteration; callers treat it as possibly one iteration stale.
func (l *Loop) StatusSnapshot() Status {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	return l.lastStatus
}
