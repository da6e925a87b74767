// Package session owns the currently loaded recording: its samples, the
// features derived from them and the player that plays them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/AudioScope/internal/analysis"
	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/model"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

var (
	ErrNoAudio    = errors.New("no audio loaded")
	ErrSuperseded = errors.New("superseded by a newer load")
	ErrClosed     = errors.New("session is closed")
)

// OutputFactory creates the audio device for a newly loaded buffer.
type OutputFactory func(sampleRate int) (playback.Output, error)

// HeadlessOutputs plays through a clocked output with no sound card.
func HeadlessOutputs(sampleRate int) (playback.Output, error) {
	return playback.NewHeadless(sampleRate, 0), nil
}

type Options struct {
	Params    analysis.Params
	Decode    audio.DecodeOptions
	NewOutput OutputFactory
	Logger    *logger.Logger
	// OnPlaybackComplete is forwarded to every player the session creates.
	OnPlaybackComplete func()
}

type decodeFunc func(ctx context.Context, path string, opts audio.DecodeOptions) (*audio.SampleBuffer, error)

// Session holds at most one generation: a buffer plus everything derived
// from it. A load replaces the generation as a whole; features are computed
// lazily, once per generation, and a result from a generation that has since
// been replaced is reported as ErrSuperseded instead of being returned.
type Session struct {
	opts   Options
	log    *logger.Logger
	decode decodeFunc

	tickets atomic.Uint64
	loading atomic.Int32
	cur     atomic.Pointer[generation]

	mu     sync.Mutex // guards installs and close
	closed bool
}

type generation struct {
	id     uint64
	path   string
	buf    *audio.SampleBuffer
	player *playback.Controller
	params analysis.Params

	specOnce sync.Once
	spec     *model.Spectrogram
	specErr  error

	pitchOnce sync.Once
	pitch     model.PitchTrack

	tempoOnce sync.Once
	tempo     model.TempoEstimate

	keyOnce sync.Once
	key     model.KeyEstimate
}

func New(opts Options) (*Session, error) {
	opts.Params = opts.Params.WithDefaults()
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.NewOutput == nil {
		opts.NewOutput = HeadlessOutputs
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Session{
		opts:   opts,
		log:    log.Named("session"),
		decode: audio.Decode,
	}, nil
}

// Load decodes path and makes it the current recording. On a decode error
// the previous recording stays current. If another load was requested after
// this one and has already been installed, ErrSuperseded is returned and the
// decoded buffer is dropped.
func (s *Session) Load(ctx context.Context, path string) error {
	ticket := s.tickets.Add(1)
	s.loading.Add(1)
	defer s.loading.Add(-1)

	s.log.Infof("Loading audio... %s", path)
	buf, err := s.decode(ctx, path, s.opts.Decode)
	if err != nil {
		s.log.Warnf("load of %s failed: %v", path, err)
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return s.install(ticket, path, buf)
}

// LoadBuffer installs an already decoded buffer under name.
func (s *Session) LoadBuffer(name string, buf *audio.SampleBuffer) error {
	if buf == nil {
		return ErrNoAudio
	}
	return s.install(s.tickets.Add(1), name, buf)
}

func (s *Session) install(ticket uint64, path string, buf *audio.SampleBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	old := s.cur.Load()
	if old != nil && old.id > ticket {
		s.log.Debugf("discarding %s: a newer load is current", path)
		return ErrSuperseded
	}

	out, err := s.opts.NewOutput(buf.SampleRate())
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	player, err := playback.NewController(buf, out, playback.Options{
		Logger:     s.log,
		OnComplete: s.opts.OnPlaybackComplete,
	})
	if err != nil {
		out.Close()
		return fmt.Errorf("creating player: %w", err)
	}

	// The old player's device must be stopped and its callback joined
	// before the old buffer is released.
	if old != nil {
		if err := old.player.Close(); err != nil {
			s.log.Warnf("closing previous player: %v", err)
		}
	}

	s.cur.Store(&generation{
		id:     ticket,
		path:   path,
		buf:    buf,
		player: player,
		params: s.opts.Params,
	})
	s.log.Infof("Loaded %s: %.2f seconds at %d Hz", path, buf.DurationSeconds(), buf.SampleRate())
	return nil
}

// Busy reports whether a Load is decoding.
func (s *Session) Busy() bool { return s.loading.Load() > 0 }

// Generation identifies the current recording; it changes on every
// successful load and is 0 before the first.
func (s *Session) Generation() uint64 {
	if g := s.cur.Load(); g != nil {
		return g.id
	}
	return 0
}

func (s *Session) current() (*generation, error) {
	g := s.cur.Load()
	if g == nil {
		return nil, ErrNoAudio
	}
	return g, nil
}

func (s *Session) Path() string {
	if g := s.cur.Load(); g != nil {
		return g.path
	}
	return ""
}

func (s *Session) Params() analysis.Params { return s.opts.Params }

func (s *Session) Buffer() (*audio.SampleBuffer, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	return g.buf, nil
}

func (s *Session) Player() (*playback.Controller, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	return g.player, nil
}

func (s *Session) Spectrogram() (*model.Spectrogram, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.spectrogramFor(g)
}

func (s *Session) PitchTrack() (model.PitchTrack, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.pitchFor(g)
}

func (s *Session) Tempo() (model.TempoEstimate, error) {
	g, err := s.current()
	if err != nil {
		return model.TempoEstimate{}, err
	}
	return s.tempoFor(g)
}

func (s *Session) Key() (model.KeyEstimate, error) {
	g, err := s.current()
	if err != nil {
		return model.KeyEstimate{}, err
	}
	return s.keyFor(g)
}

func (s *Session) spectrogramFor(g *generation) (*model.Spectrogram, error) {
	spec, err := g.spectrogram()
	if err != nil {
		return nil, err
	}
	if err := s.stillCurrent(g); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *Session) pitchFor(g *generation) (model.PitchTrack, error) {
	spec, err := g.spectrogram()
	if err != nil {
		return nil, err
	}
	g.pitchOnce.Do(func() {
		g.pitch = analysis.Track(spec)
	})
	if err := s.stillCurrent(g); err != nil {
		return nil, err
	}
	return g.pitch, nil
}

func (s *Session) tempoFor(g *generation) (model.TempoEstimate, error) {
	spec, err := g.spectrogram()
	if err != nil {
		return model.TempoEstimate{}, err
	}
	g.tempoOnce.Do(func() {
		g.tempo = analysis.TempoFromSpectrogram(spec)
		if g.tempo.Fallback {
			s.log.Debugf("no periodicity in %s, using %.0f BPM", g.path, g.tempo.BPM)
		}
	})
	if err := s.stillCurrent(g); err != nil {
		return model.TempoEstimate{}, err
	}
	return g.tempo, nil
}

func (s *Session) keyFor(g *generation) (model.KeyEstimate, error) {
	spec, err := g.spectrogram()
	if err != nil {
		return model.KeyEstimate{}, err
	}
	g.keyOnce.Do(func() {
		g.key = analysis.DetectKey(spec)
	})
	if err := s.stillCurrent(g); err != nil {
		return model.KeyEstimate{}, err
	}
	return g.key, nil
}

func (s *Session) stillCurrent(g *generation) error {
	if s.cur.Load() != g {
		return ErrSuperseded
	}
	return nil
}

func (g *generation) spectrogram() (*model.Spectrogram, error) {
	g.specOnce.Do(func() {
		g.spec, g.specErr = analysis.Analyze(g.buf, g.params)
	})
	return g.spec, g.specErr
}

// Close stops playback and drops the current recording.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	g := s.cur.Swap(nil)
	if g == nil {
		return nil
	}
	return g.player.Close()
}
