package camera

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegBytes(payload ...byte) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, payload...)
	out = append(out, 0xFF, 0xD9)
	return out
}

func TestReadJPEGFramesSplitsConcatenatedStream(t *testing.T) {
	first := jpegBytes(0x01, 0x02)
	second := jpegBytes(0x03)
	stream := append(append([]byte{}, first...), second...)

	var frames [][]byte
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(data []byte) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, frames, 2)
	assert.Equal(t, first, frames[0])
	assert.Equal(t, second, frames[1])
}

func TestReadJPEGFramesSkipsLeadingGarbage(t *testing.T) {
	frame := jpegBytes(0xAA)
	stream := append([]byte{0x00, 0x11, 0xFF, 0x00}, frame...)

	var frames [][]byte
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(data []byte) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, frames, 1)
	assert.Equal(t, frame, frames[0])
}

func TestReadJPEGFramesTruncatedTailIsNormalEnd(t *testing.T) {
	frame := jpegBytes(0x01)
	stream := append(append([]byte{}, frame...), 0xFF, 0xD8, 0x55) // second frame cut off

	var frames [][]byte
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(data []byte) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
}

func TestReadJPEGFramesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := readJPEGFrames(ctx, bytes.NewReader(jpegBytes(0x01)), func([]byte) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
