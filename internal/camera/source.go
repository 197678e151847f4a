// Package camera turns a camera descriptor into a stream of decoded frames.
// FFmpeg does the heavy lifting; the Source keeps only the most recent frame
// so a slow consumer always sees the present, never a backlog.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// ErrNoFrame is returned when no usable frame is available: the feed has not
// produced one yet, or the last one is older than the staleness cutoff.
var ErrNoFrame = errors.New("no fresh frame available")

// Frame is one decoded camera frame. JPEG holds the original encoded bytes so
// a granted entry can store the exact evidence frame without re-encoding.
type Frame struct {
	Image      image.Image
	JPEG       []byte
	CapturedAt time.Time
}

// Source runs the extractor in the background and hands out the latest frame
// on demand. A feed that dies is restarted with a short backoff; frames older
// than staleAfter are treated as absent.
type Source struct {
	input      string
	fps        int
	width      int
	staleAfter time.Duration

	extractor *FFmpegExtractor

	mu     sync.RWMutex
	latest *Frame

	done chan struct{}
}

// ResolveInput maps a camera descriptor to an FFmpeg input. The sentinel
// address 0.0.0.0 means the camera is plugged into this machine.
func ResolveInput(cam models.Camera, cfg config.CameraConfig) string {
	if cam.IsLocal() {
		return cfg.LocalDevice
	}
	return cam.StreamURL()
}

func NewSource(input string, cfg config.CameraConfig) *Source {
	return &Source{
		input:      input,
		fps:        cfg.FPS,
		width:      cfg.FrameWidth,
		staleAfter: cfg.StaleAfter,
		extractor:  &FFmpegExtractor{},
		done:       make(chan struct{}),
	}
}

// Start launches the extraction goroutine and waits up to startupTimeout for
// the first frame. A camera that produces nothing in that window is a startup
// failure.
func (s *Source) Start(ctx context.Context, startupTimeout time.Duration) error {
	go s.run(ctx)

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		s.mu.RLock()
		got := s.latest != nil
		s.mu.RUnlock()
		if got {
			return nil
		}
	}
	return fmt.Errorf("camera %s produced no frame within %s", s.input, startupTimeout)
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.extractor.StartExtraction(ctx, s.input, s.fps, s.width, s.onFrame)
		if ctx.Err() != nil {
			return
		}
		slog.Error("camera feed ended, restarting", "input", s.input, "error", err)
		observability.FrameFailures.Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Source) onFrame(frameData []byte) error {
	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		observability.FrameFailures.Inc()
		return fmt.Errorf("decode frame: %w", err)
	}

	buf := make([]byte, len(frameData))
	copy(buf, frameData)

	s.mu.Lock()
	s.latest = &Frame{Image: img, JPEG: buf, CapturedAt: time.Now()}
	s.mu.Unlock()

	observability.FramesProcessed.Inc()
	return nil
}

// Latest returns the most recent frame, or ErrNoFrame when the feed has not
// produced a fresh one. Never blocks.
func (s *Source) Latest() (*Frame, error) {
	s.mu.RLock()
	f := s.latest
	s.mu.RUnlock()

	if f == nil {
		return nil, ErrNoFrame
	}
	if time.Since(f.CapturedAt) > s.staleAfter {
		return nil, ErrNoFrame
	}
	return f, nil
}

// Stop tears down the extractor and waits for the run loop to exit.
func (s *Source) Stop() {
	s.extractor.Stop()
	<-s.done
}
