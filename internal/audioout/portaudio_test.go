package audioout

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

func newOutput(t *testing.T) *PortAudio {
	t.Helper()
	out, err := NewPortAudio(0)
	if err != nil {
		t.Skipf("portaudio unavailable: %v", err)
	}
	return out
}

func TestCloseIsIdempotent(t *testing.T) {
	out := newOutput(t)
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if err := out.Start(nil); !errors.Is(err, playback.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestPlaysThroughDefaultDevice(t *testing.T) {
	out := newOutput(t)
	defer out.Close()
	if _, err := portaudio.DefaultOutputDevice(); err != nil {
		t.Skipf("no output device: %v", err)
	}

	buf, err := audio.NewSampleBuffer(make([]float32, 44100), 44100)
	if err != nil {
		t.Fatal(err)
	}
	c, err := playback.NewController(buf, out, playback.Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Play(); err != nil {
		t.Skipf("device refused stream: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	if c.Offset() <= 0 {
		t.Errorf("Expected the device to have consumed samples, offset %v", c.Offset())
	}
}
