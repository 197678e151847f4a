package loop

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/camera"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/internal/sensorbus"
	"github.com/your-org/kiosk/internal/vision"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeFrames struct {
	clock *fakeClock
	fail  bool
}

func (f *fakeFrames) Latest() (*camera.Frame, error) {
	if f.fail {
		return nil, camera.ErrNoFrame
	}
	return &camera.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 4, 4)),
		JPEG:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		CapturedAt: f.clock.Now(),
	}, nil
}

type fakeMask struct {
	verdict vision.MaskVerdict
	calls   int
}

func (f *fakeMask) Classify(image.Image) (vision.MaskVerdict, error) {
	f.calls++
	return f.verdict, nil
}

type fakeMatcher struct {
	result vision.MatchResult
	calls  int
}

func (f *fakeMatcher) Match(_ image.Image, _ []models.RosterEntry) (vision.MatchResult, error) {
	f.calls++
	return f.result, nil
}

type fakeBus struct {
	published map[string][]string
	readings  []sensorbus.Message
	readErr   error
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][]string)}
}

func (f *fakeBus) Publish(_ context.Context, topic, payload string) error {
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeBus) ReadLatest(_ context.Context, _ string) ([]sensorbus.Message, error) {
	return f.readings, f.readErr
}

type fakeRoster struct {
	snap     *roster.Snapshot
	refreshN int
}

func (f *fakeRoster) Refresh(context.Context) error { f.refreshN++; return nil }

func (f *fakeRoster) Current() *roster.Snapshot { return f.snap }

type recordedEntry struct {
	personID  int64
	pictureID int64
	action    models.EntryType
	at        time.Time
}

type fakeRecorder struct {
	pictures []models.Picture
	entries  []recordedEntry
}

func (f *fakeRecorder) GetPerson(_ context.Context, id int64) (*models.Person, error) {
	return &models.Person{ID: id, FirstName: "Ada", LastName: "Lovelace"}, nil
}

func (f *fakeRecorder) AddPicture(_ context.Context, personID int64, objectKey string, encoding []float32) (*models.Picture, error) {
	pic := models.Picture{ID: int64(100 + len(f.pictures)), PersonID: personID, ObjectKey: objectKey, Encoding: encoding}
	f.pictures = append(f.pictures, pic)
	return &pic, nil
}

func (f *fakeRecorder) RecordEntry(_ context.Context, personID, pictureID int64, action models.EntryType, at time.Time) error {
	f.entries = append(f.entries, recordedEntry{personID, pictureID, action, at})
	return nil
}

type fakePhotos struct {
	stored map[string][]byte
}

func (f *fakePhotos) PutPhoto(_ context.Context, key string, data []byte) error {
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[key] = data
	return nil
}

type fakeGate struct {
	admit bool
	calls int
}

func (f *fakeGate) Admit(context.Context, int64, models.EntryType, time.Time) (bool, error) {
	f.calls++
	return f.admit, nil
}

type fixture struct {
	clock    *fakeClock
	frames   *fakeFrames
	mask     *fakeMask
	matcher  *fakeMatcher
	bus      *fakeBus
	roster   *fakeRoster
	recorder *fakeRecorder
	photos   *fakePhotos
	gate     *fakeGate
	loop     *Loop
}

func testLoopConfig() config.LoopConfig {
	return config.LoopConfig{
		MaskInterval:     5 * time.Second,
		FaceInterval:     8 * time.Second,
		TempInterval:     5 * time.Second,
		Cooldown:         13 * time.Second,
		FlagWindow:       30 * time.Second,
		TempFreshness:    32 * time.Second,
		RosterRefresh:    60 * time.Second,
		TempThreshold:    38.0,
		FrameDelay:       20 * time.Millisecond,
		ForceFaceRefresh: 4,
	}
}

func testNATSConfig() config.NATSConfig {
	return config.NATSConfig{
		TemperatureTopic: "temperature",
		SpeakerTopic:     "speaker",
		DoorTopic:        "door",
	}
}

func allDayHours(t *testing.T) models.OperatingHours {
	t.Helper()
	h, err := models.ParseOperatingHours("00:00", "23:59")
	require.NoError(t, err)
	return h
}

func newFixture(t *testing.T, cam models.Camera, snap *roster.Snapshot) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 3, 11, 10, 0, 0, 0, time.Local)}
	f := &fixture{
		clock:    clock,
		frames:   &fakeFrames{clock: clock},
		mask:     &fakeMask{verdict: vision.MaskNoFace},
		matcher:  &fakeMatcher{},
		bus:      newFakeBus(),
		roster:   &fakeRoster{snap: snap},
		recorder: &fakeRecorder{},
		photos:   &fakePhotos{},
		gate:     &fakeGate{admit: true},
	}
	f.loop = New(testLoopConfig(), testNATSConfig(), cam, Deps{
		Frames:   f.frames,
		Mask:     f.mask,
		Matcher:  f.matcher,
		Bus:      f.bus,
		Roster:   f.roster,
		Recorder: f.recorder,
		Photos:   f.photos,
		Gate:     f.gate,
		Clock:    clock,
	})
	return f
}

func defaultSnapshot(t *testing.T) *roster.Snapshot {
	return &roster.Snapshot{
		Profile: models.ProfileAllActive,
		Hours:   allDayHours(t),
		Entries: []models.RosterEntry{{PersonID: 7, PictureID: 70, Encoding: []float32{0.1, 0.2}}},
	}
}

func matchFor(personID, pictureID int64) vision.MatchResult {
	return vision.MatchResult{
		FaceFound: true,
		Matched:   true,
		PersonID:  personID,
		PictureID: pictureID,
		Encoding:  []float32{0.1, 0.2},
	}
}

func step(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.loop.Step(context.Background()))
}

func TestMaskThenFaceOpensDoor(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true, AskTemp: false}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.matcher.result = matchFor(7, 70)

	// Past startup cooldown; a masked face appears.
	f.clock.Advance(14 * time.Second)
	f.mask.verdict = vision.MaskPresent
	step(t, f)
	assert.True(t, f.loop.state.MaskDetected)
	assert.Contains(t, f.loop.pending, MsgMaskDetected)
	assert.Zero(t, f.matcher.calls, "face matching must wait for the mask to come off")

	// Mask lowered for identification.
	f.clock.Advance(6 * time.Second)
	f.mask.verdict = vision.MaskAbsent
	step(t, f)

	require.Equal(t, []string{DoorOpenPayload}, f.bus.published["door"])
	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, int64(7), f.recorder.entries[0].personID)
	assert.Equal(t, models.EntryTypeEntry, f.recorder.entries[0].action)
	assert.Equal(t, f.clock.Now(), f.recorder.entries[0].at)
	assert.Len(t, f.photos.stored, 1)

	// Full reset: flags cleared, cooldown restarted.
	assert.False(t, f.loop.state.MaskDetected)
	assert.False(t, f.loop.state.FaceRecognized)
	assert.Equal(t, f.clock.Now(), f.loop.state.LastWelcome)
	assert.Contains(t, f.loop.pending, MsgWelcome)
}

func TestAdvisoriesFlushBeforeDetectors(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true}
	f := newFixture(t, cam, defaultSnapshot(t))

	f.clock.Advance(14 * time.Second)
	f.mask.verdict = vision.MaskPresent
	step(t, f)
	assert.Empty(t, f.bus.published["speaker"], "queued advisories wait for the next iteration")

	f.clock.Advance(time.Second)
	step(t, f)
	require.Len(t, f.bus.published["speaker"], 1)
	assert.Equal(t, MsgMaskDetected, f.bus.published["speaker"][0])
	assert.Empty(t, f.loop.pending)
}

func TestCooldownBlocksEvaluation(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent

	// Within the startup cooldown nothing runs.
	f.clock.Advance(10 * time.Second)
	step(t, f)
	assert.Zero(t, f.mask.calls)

	f.clock.Advance(4 * time.Second)
	step(t, f)
	assert.Equal(t, 1, f.mask.calls)
}

func TestMaskFlagExpiresAfterWindow(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true}
	f := newFixture(t, cam, defaultSnapshot(t))

	f.clock.Advance(14 * time.Second)
	f.mask.verdict = vision.MaskPresent
	step(t, f)
	require.True(t, f.loop.state.MaskDetected)

	// No face in view while the window runs out.
	f.clock.Advance(31 * time.Second)
	f.mask.verdict = vision.MaskNoFace
	step(t, f)
	assert.False(t, f.loop.state.MaskDetected)
}

func TestMaskCadenceBound(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskNoFace
	f.clock.Advance(14 * time.Second)

	elapsed := 60 * time.Second
	for d := time.Duration(0); d < elapsed; d += time.Second {
		step(t, f)
		f.clock.Advance(time.Second)
	}

	maxCalls := int(elapsed/testLoopConfig().MaskInterval) + 1
	assert.LessOrEqual(t, f.mask.calls, maxCalls)
	assert.Greater(t, f.mask.calls, 1)
}

func TestNoFaceSkipsIteration(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskNoFace
	f.bus.readings = []sensorbus.Message{{Body: "36.5", Timestamp: f.clock.Now()}}

	f.clock.Advance(14 * time.Second)
	step(t, f)

	assert.Equal(t, 1, f.mask.calls)
	assert.Zero(t, f.matcher.calls)
	assert.False(t, f.loop.state.TempOK, "temperature must not be polled when no face is present")
	assert.Empty(t, f.loop.pending)
}

func TestOutsideOperatingHours(t *testing.T) {
	hours, err := models.ParseOperatingHours("09:00", "18:00")
	require.NoError(t, err)
	snap := defaultSnapshot(t)
	snap.Hours = hours

	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, snap)
	f.clock.now = time.Date(2024, 3, 11, 20, 0, 0, 0, time.Local)
	f.loop.state.Reset(f.clock.now.Add(-time.Minute))
	f.mask.verdict = vision.MaskAbsent

	step(t, f)
	assert.Contains(t, f.loop.pending, MsgOutsideHours)
	assert.Zero(t, f.matcher.calls)
	assert.Empty(t, f.bus.published["door"])
}

func TestExitIgnoresOperatingHours(t *testing.T) {
	hours, err := models.ParseOperatingHours("09:00", "18:00")
	require.NoError(t, err)
	snap := defaultSnapshot(t)
	snap.Hours = hours

	cam := models.Camera{EntryType: models.EntryTypeExit}
	f := newFixture(t, cam, snap)
	f.clock.now = time.Date(2024, 3, 11, 20, 0, 0, 0, time.Local)
	f.loop.state.Reset(f.clock.now.Add(-time.Minute))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)

	step(t, f)
	require.Equal(t, []string{DoorOpenPayload}, f.bus.published["door"])
	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, models.EntryTypeExit, f.recorder.entries[0].action)
}

func TestUnknownPersonAdvisory(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = vision.MatchResult{FaceFound: true, Matched: false}

	f.clock.Advance(14 * time.Second)
	step(t, f)

	assert.Contains(t, f.loop.pending, MsgUnknownPerson)
	assert.False(t, f.loop.state.FaceRecognized)
	assert.Empty(t, f.bus.published["door"])
}

func TestHighTemperatureBlocksDoor(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: false, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)

	f.clock.Advance(14 * time.Second)
	f.bus.readings = []sensorbus.Message{{Body: "39.0", Timestamp: f.clock.Now()}}
	step(t, f)

	assert.True(t, f.loop.state.FaceRecognized)
	assert.False(t, f.loop.state.TempOK)
	assert.Contains(t, f.loop.pending, MsgTempTooHigh)
	assert.Empty(t, f.bus.published["door"])
	assert.Empty(t, f.recorder.entries)
}

func TestStaleTemperatureReadsAsMissing(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)

	f.clock.Advance(14 * time.Second)
	f.bus.readings = []sensorbus.Message{{Body: "36.5", Timestamp: f.clock.Now().Add(-40 * time.Second)}}
	step(t, f)

	assert.False(t, f.loop.state.TempOK)
	assert.Contains(t, f.loop.pending, MsgTakeTemperature)
	assert.Empty(t, f.bus.published["door"])
}

func TestMalformedTemperaturePayload(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent

	f.clock.Advance(14 * time.Second)
	f.bus.readings = []sensorbus.Message{{Body: "warm-ish", Timestamp: f.clock.Now()}}
	step(t, f)

	assert.False(t, f.loop.state.TempOK)
	assert.Contains(t, f.loop.pending, MsgTakeTemperature)
}

func TestDoorPrecondition(t *testing.T) {
	cases := []struct {
		name                 string
		face, mask, temp     bool
		askMask, askTemp     bool
		wantOpen, wantDecide bool
	}{
		{"all satisfied", true, true, true, true, true, true, true},
		{"no face", false, true, true, true, true, false, false},
		{"no mask", true, false, true, true, true, false, false},
		{"no temp", true, true, false, true, true, false, false},
		{"face only, mask missing", true, false, false, true, true, false, false},
		{"mask+temp without face", false, true, true, true, true, false, false},
		{"nothing satisfied", false, false, false, true, true, false, false},
		{"temp only", false, false, true, true, true, false, false},
		{"checks not required", true, false, false, false, false, true, true},
		{"mask not required", true, false, true, false, true, true, true},
		{"temp not required", true, true, false, true, false, true, true},
		{"face always required", false, false, false, false, false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: tc.askMask, AskTemp: tc.askTemp}
			f := newFixture(t, cam, defaultSnapshot(t))
			f.mask.verdict = vision.MaskAbsent

			now := f.clock.Now()
			f.loop.state = DetectionState{
				FaceRecognized: tc.face,
				MaskDetected:   tc.mask,
				TempOK:         tc.temp,
				PersonID:       7,
				Encoding:       []float32{0.1, 0.2},
				LastWelcome:    now.Add(-20 * time.Second),
				LastMaskCheck:  now.Add(-6 * time.Second),
				LastFaceCheck:  now, // face cadence not due this iteration
				LastTempCheck:  now, // temp cadence not due this iteration
				MaskSeenAt:     now,
				FaceSeenAt:     now,
			}

			step(t, f)

			if tc.wantOpen {
				assert.Equal(t, []string{DoorOpenPayload}, f.bus.published["door"])
				assert.Len(t, f.recorder.entries, 1)
			} else {
				assert.Empty(t, f.bus.published["door"])
				assert.Empty(t, f.recorder.entries)
			}
			if tc.wantDecide {
				// Decision taken: full reset regardless of outcome.
				assert.False(t, f.loop.state.FaceRecognized)
				assert.False(t, f.loop.state.MaskDetected)
				assert.False(t, f.loop.state.TempOK)
				assert.Equal(t, f.clock.Now(), f.loop.state.LastWelcome)
			}
		})
	}
}

func TestResetBlocksImmediateRetrigger(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)

	f.clock.Advance(14 * time.Second)
	step(t, f)
	require.Len(t, f.bus.published["door"], 1)

	// The very next iterations sit in the cooldown: detectors stay idle.
	maskCalls := f.mask.calls
	f.clock.Advance(time.Second)
	step(t, f)
	f.clock.Advance(time.Second)
	step(t, f)
	assert.Equal(t, maskCalls, f.mask.calls)
	assert.Len(t, f.bus.published["door"], 1)
}

func TestAppointmentProfileGatesDoor(t *testing.T) {
	snap := defaultSnapshot(t)
	snap.Profile = models.ProfileAcceptedAppointments

	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, snap)
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)
	f.gate.admit = false

	f.clock.Advance(14 * time.Second)
	step(t, f)

	assert.Equal(t, 1, f.gate.calls)
	assert.Empty(t, f.bus.published["door"])
	assert.Empty(t, f.recorder.entries)
	assert.Contains(t, f.loop.pending, MsgAppointmentRequired)

	// Policy rejection still resets state and restarts the cooldown.
	assert.False(t, f.loop.state.FaceRecognized)
	assert.Equal(t, f.clock.Now(), f.loop.state.LastWelcome)
}

func TestAppointmentProfileAdmits(t *testing.T) {
	snap := defaultSnapshot(t)
	snap.Profile = models.ProfileAcceptedAppointments

	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, snap)
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)
	f.gate.admit = true

	f.clock.Advance(14 * time.Second)
	step(t, f)

	assert.Equal(t, 1, f.gate.calls)
	assert.Equal(t, []string{DoorOpenPayload}, f.bus.published["door"])
	require.Len(t, f.recorder.entries, 1)
}

func TestFrameFailureSkipsIteration(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.frames.fail = true

	f.clock.Advance(14 * time.Second)
	step(t, f)
	assert.Zero(t, f.mask.calls)
	assert.Zero(t, f.roster.refreshN, "a frameless iteration must not touch collaborators")
}

func TestRosterRefreshCadence(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskNoFace
	f.clock.Advance(14 * time.Second)

	step(t, f)
	assert.Equal(t, 1, f.roster.refreshN)

	f.clock.Advance(30 * time.Second)
	step(t, f)
	assert.Equal(t, 1, f.roster.refreshN, "refresh holds until its interval passes")

	f.clock.Advance(31 * time.Second)
	step(t, f)
	assert.Equal(t, 2, f.roster.refreshN)
}

func TestForcedFaceRefresh(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)
	// Keep temperature perpetually missing so no door decision resets state.
	f.bus.readings = nil

	f.clock.Advance(14 * time.Second)
	step(t, f)
	require.True(t, f.loop.state.FaceRecognized)
	assert.Equal(t, 1, f.matcher.calls)

	// Recognized and within the forced-refresh horizon: no re-match.
	f.clock.Advance(10 * time.Second)
	step(t, f)
	assert.Equal(t, 1, f.matcher.calls)

	// Once the recognition goes stale the identity is re-verified.
	f.clock.Advance(25 * time.Second)
	step(t, f)
	assert.Equal(t, 2, f.matcher.calls)
}

func TestFaceFlagExpiresAfterWindow(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true, AskTemp: false}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent
	f.matcher.result = matchFor(7, 70)

	// Person 7 is recognized but bare-faced, so the door stays shut.
	f.clock.Advance(14 * time.Second)
	step(t, f)
	require.True(t, f.loop.state.FaceRecognized)
	require.Empty(t, f.bus.published["door"])

	// Twice the freshness window later a masked face shows up. The old
	// recognition has expired; it must not vouch for whoever this is.
	f.clock.Advance(60 * time.Second)
	f.mask.verdict = vision.MaskPresent
	step(t, f)

	assert.False(t, f.loop.state.FaceRecognized)
	assert.Zero(t, f.loop.state.PersonID)
	assert.Empty(t, f.bus.published["door"])
	assert.Empty(t, f.recorder.entries)
}

func TestStaleTemperatureRevokesClearance(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: false, AskTemp: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskAbsent

	// A fresh reading clears the temperature flag before anyone is matched.
	f.clock.Advance(14 * time.Second)
	f.bus.readings = []sensorbus.Message{{Body: "36.5", Timestamp: f.clock.Now()}}
	step(t, f)
	require.True(t, f.loop.state.TempOK)

	// By the time the person is matched the reading has aged out; the old
	// clearance must not open the door.
	f.clock.Advance(40 * time.Second)
	f.matcher.result = matchFor(7, 70)
	step(t, f)

	assert.True(t, f.loop.state.FaceRecognized)
	assert.False(t, f.loop.state.TempOK)
	assert.Contains(t, f.loop.pending, MsgTakeTemperature)
	assert.Empty(t, f.bus.published["door"])
	assert.Empty(t, f.recorder.entries)
}

func TestStatusSnapshot(t *testing.T) {
	cam := models.Camera{EntryType: models.EntryTypeEntry, AskMask: true}
	f := newFixture(t, cam, defaultSnapshot(t))
	f.mask.verdict = vision.MaskPresent

	f.clock.Advance(14 * time.Second)
	step(t, f)

	st := f.loop.StatusSnapshot()
	assert.True(t, st.MaskDetected)
	assert.False(t, st.FaceRecognized)
	assert.Equal(t, "all_active", st.Profile)
	assert.Equal(t, 1, st.RosterSize)
	assert.Contains(t, st.Pending, MsgMaskDetected)
}
