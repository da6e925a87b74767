package overlay

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/model"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

type fakeTransport struct {
	mu      sync.Mutex
	state   playback.State
	seeks   []float64
	seekErr error
}

func (f *fakeTransport) State() playback.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Seek(t float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seekErr != nil {
		return f.seekErr
	}
	f.seeks = append(f.seeks, t)
	f.state.OffsetSeconds = t
	return nil
}

func (f *fakeTransport) set(st playback.State) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
}

type recordingSurface struct {
	mu      sync.Mutex
	markers []float64
	views   []ViewKind
	pitches []float64
}

func (r *recordingSurface) DrawMarker(view ViewKind, x float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
	r.markers = append(r.markers, x)
}

func (r *recordingSurface) ShowPitch(hz float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pitches = append(r.pitches, hz)
}

func (r *recordingSurface) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

func (r *recordingSurface) last() (ViewKind, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1], r.markers[len(r.markers)-1]
}

func newTestOverlay(tr Transport, s Surface, interval time.Duration) *Overlay {
	o := New(tr, s, interval)
	o.SetLogger(logger.Discard())
	return o
}

func TestTimeAxis(t *testing.T) {
	axis := TimeAxis{Origin: 10, Width: 200, Duration: 4}

	tests := []struct {
		t, x float64
	}{
		{0, 10},
		{1, 60},
		{4, 210},
		{-1, 10},
		{9, 210},
	}
	for _, tt := range tests {
		if got := axis.X(tt.t); got != tt.x {
			t.Errorf("X(%v) = %v, want %v", tt.t, got, tt.x)
		}
	}

	if got := axis.Time(60); got != 1 {
		t.Errorf("Time(60) = %v, want 1", got)
	}
	if got := axis.Time(-50); got != 0 {
		t.Errorf("Time left of axis = %v, want 0", got)
	}
	if got := axis.Time(1000); got != 4 {
		t.Errorf("Time right of axis = %v, want 4", got)
	}
	if got := axis.Time(math.NaN()); got != 0 {
		t.Errorf("Time(NaN) = %v, want 0", got)
	}
	if got := (TimeAxis{Width: 100}).X(3); got != 0 {
		t.Errorf("Zero-duration axis should pin to origin, got %v", got)
	}
}

func TestTimeAxisRoundTrip(t *testing.T) {
	axis := TimeAxis{Origin: 0, Width: 800, Duration: 12.5}
	for _, sec := range []float64{0, 0.1, 3.3, 7.77, 12.5} {
		if got := axis.Time(axis.X(sec)); math.Abs(got-sec) > 1e-9 {
			t.Errorf("Time(X(%v)) = %v", sec, got)
		}
	}
}

func TestParseView(t *testing.T) {
	for in, want := range map[string]ViewKind{
		"waveform":        Waveform,
		"Spectrogram":     Spectrogram,
		"pitch":           Pitch,
		"Pitch Over Time": Pitch,
	} {
		got, err := ParseView(in)
		if err != nil || got != want {
			t.Errorf("ParseView(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseView("oscilloscope"); err == nil {
		t.Error("Expected error for unknown view")
	}
	if Pitch.String() != "Pitch Over Time" {
		t.Errorf("Unexpected display name %q", Pitch.String())
	}
}

func TestPitchAt(t *testing.T) {
	track := model.PitchTrack{
		{TimeSeconds: 0.0, FrequencyHz: 220, Voiced: true},
		{TimeSeconds: 0.1, FrequencyHz: 0, Voiced: false},
		{TimeSeconds: 0.2, FrequencyHz: 440, Voiced: true},
	}
	tests := []struct {
		t    float64
		want float64
	}{
		{-1, 220},
		{0.04, 220},
		{0.09, 0},
		{0.16, 440},
		{5, 440},
	}
	for _, tt := range tests {
		if got := PitchAt(track, tt.t); got != tt.want {
			t.Errorf("PitchAt(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
	if got := PitchAt(nil, 1); got != 0 {
		t.Errorf("Empty track should give 0, got %v", got)
	}
}

func TestTickOnlyWhilePlaying(t *testing.T) {
	tr := &fakeTransport{}
	surf := &recordingSurface{}
	o := newTestOverlay(tr, surf, 0)

	if o.Tick() {
		t.Error("Tick without a view should not draw")
	}
	o.SetView(View{Kind: Waveform, Axis: TimeAxis{Width: 100, Duration: 10}})
	drawn := surf.count()

	if o.Tick() {
		t.Error("Tick while stopped should not draw")
	}

	tr.set(playback.State{Status: playback.Playing, OffsetSeconds: 2.5})
	if !o.Tick() {
		t.Fatal("Tick while playing should draw")
	}
	if surf.count() != drawn+1 {
		t.Fatalf("Expected one new marker, got %d", surf.count()-drawn)
	}
	if view, x := surf.last(); view != Waveform || x != 25 {
		t.Errorf("Expected waveform marker at 25, got %v at %v", view, x)
	}
}

func TestSetViewRedrawsImmediately(t *testing.T) {
	tr := &fakeTransport{state: playback.State{Status: playback.Paused, OffsetSeconds: 1}}
	surf := &recordingSurface{}
	o := newTestOverlay(tr, surf, 0)

	o.SetView(View{Kind: Spectrogram, Axis: TimeAxis{Width: 400, Duration: 4}})
	if view, x := surf.last(); view != Spectrogram || x != 100 {
		t.Errorf("Expected spectrogram marker at 100, got %v at %v", view, x)
	}
	if v, ok := o.View(); !ok || v.Kind != Spectrogram {
		t.Errorf("View() = %+v, %v", v, ok)
	}
}

func TestPitchViewShowsReadout(t *testing.T) {
	tr := &fakeTransport{state: playback.State{Status: playback.Playing, OffsetSeconds: 0.2}}
	surf := &recordingSurface{}
	o := newTestOverlay(tr, surf, 0)

	track := model.PitchTrack{
		{TimeSeconds: 0, FrequencyHz: 300, Voiced: true},
		{TimeSeconds: 0.2, FrequencyHz: 0},
	}
	o.SetView(View{Kind: Pitch, Axis: TimeAxis{Width: 10, Duration: 1}, Pitch: track})
	o.Tick()

	surf.mu.Lock()
	defer surf.mu.Unlock()
	if len(surf.pitches) != 2 {
		t.Fatalf("Expected a readout per draw, got %v", surf.pitches)
	}
	if surf.pitches[1] != 0 {
		t.Errorf("Unvoiced frame should read 0, got %v", surf.pitches[1])
	}
}

func TestClickSeeks(t *testing.T) {
	tr := &fakeTransport{}
	surf := &recordingSurface{}
	o := newTestOverlay(tr, surf, 0)

	if err := o.Click(10); !errors.Is(err, ErrNoView) {
		t.Errorf("Expected ErrNoView, got %v", err)
	}

	o.SetView(View{Kind: Waveform, Axis: TimeAxis{Origin: 50, Width: 500, Duration: 10}})
	if err := o.Click(300); err != nil {
		t.Fatal(err)
	}
	if len(tr.seeks) != 1 || tr.seeks[0] != 5 {
		t.Errorf("Expected seek to 5s, got %v", tr.seeks)
	}
	if _, x := surf.last(); x != 300 {
		t.Errorf("Marker should jump to the click, got %v", x)
	}

	tr.seekErr = errors.New("device gone")
	if err := o.Click(100); err == nil {
		t.Error("Expected seek error to propagate")
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	tr := &fakeTransport{state: playback.State{Status: playback.Playing, OffsetSeconds: 1}}
	surf := &recordingSurface{}
	o := newTestOverlay(tr, surf, 10*time.Millisecond)
	o.SetView(View{Kind: Waveform, Axis: TimeAxis{Width: 100, Duration: 10}})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := o.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	if n := surf.count(); n < 5 {
		t.Errorf("Expected several redraws in 150ms at 10ms cadence, got %d", n)
	}
}

func TestOverlayFollowsController(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time playback test")
	}
	buf, err := audio.NewSampleBuffer(make([]float32, 44100*3), 44100)
	if err != nil {
		t.Fatal(err)
	}
	c, err := playback.NewController(buf, playback.NewHeadless(44100, 512), playback.Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	surf := &recordingSurface{}
	o := newTestOverlay(c, surf, 20*time.Millisecond)
	o.SetView(View{Kind: Waveform, Axis: TimeAxis{Width: 300, Duration: 3}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	if err := c.Play(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	cancel()
	<-done

	_, x := surf.last()
	if x < 30 || x > 70 {
		t.Errorf("Expected marker near x=50 after 0.5s, got %v", x)
	}

	if err := o.Click(150); err != nil {
		t.Fatal(err)
	}
	if off := c.Offset(); math.Abs(off-1.5) > 0.05 {
		t.Errorf("Click should seek the controller to ~1.5s, got %v", off)
	}
}
