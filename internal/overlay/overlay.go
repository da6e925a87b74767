// Package overlay keeps a playhead marker on the active view in step with
// the playback position and turns clicks on a view into seeks.
package overlay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/AudioScope/internal/model"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

// DefaultInterval is the marker refresh period (10 Hz).
const DefaultInterval = 100 * time.Millisecond

var ErrNoView = errors.New("no view selected")

// Transport is the part of the playback controller the overlay needs.
type Transport interface {
	State() playback.State
	Seek(t float64) error
}

// Surface draws overlay output. Its methods may be called from the Run
// goroutine and from the caller of SetView or Click.
type Surface interface {
	DrawMarker(view ViewKind, x float64)
	ShowPitch(hz float64)
}

// View is the currently displayed plot. Pitch is only consulted for the
// Pitch view.
type View struct {
	Kind  ViewKind
	Axis  TimeAxis
	Pitch model.PitchTrack
}

type Overlay struct {
	transport Transport
	surface   Surface
	interval  time.Duration
	log       *logger.Logger

	view atomic.Pointer[View]
}

func New(transport Transport, surface Surface, interval time.Duration) *Overlay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Overlay{
		transport: transport,
		surface:   surface,
		interval:  interval,
		log:       logger.GetLogger().Named("overlay"),
	}
}

func (o *Overlay) SetLogger(log *logger.Logger) {
	o.log = log.Named("overlay")
}

func (o *Overlay) Interval() time.Duration { return o.interval }

// SetView switches the active view and redraws the marker at the current
// offset, whatever the transport status.
func (o *Overlay) SetView(v View) {
	o.view.Store(&v)
	o.log.Debugf("view switched to %s", v.Kind)
	o.draw(&v, o.transport.State().OffsetSeconds)
}

func (o *Overlay) View() (View, bool) {
	v := o.view.Load()
	if v == nil {
		return View{}, false
	}
	return *v, true
}

// Tick redraws the marker if the transport is playing and a view is set.
// It reports whether anything was drawn.
func (o *Overlay) Tick() bool {
	st := o.transport.State()
	if st.Status != playback.Playing {
		return false
	}
	v := o.view.Load()
	if v == nil {
		return false
	}
	o.draw(v, st.OffsetSeconds)
	return true
}

// Run calls Tick every interval until ctx is done.
func (o *Overlay) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.Tick()
		}
	}
}

// Click seeks to the time under coordinate x on the active view and moves
// the marker there immediately.
func (o *Overlay) Click(x float64) error {
	v := o.view.Load()
	if v == nil {
		return ErrNoView
	}
	t := v.Axis.Time(x)
	if err := o.transport.Seek(t); err != nil {
		return err
	}
	o.log.Debugf("click at x=%.1f -> %.2fs", x, t)
	o.draw(v, t)
	return nil
}

func (o *Overlay) draw(v *View, offset float64) {
	o.surface.DrawMarker(v.Kind, v.Axis.X(offset))
	if v.Kind == Pitch {
		o.surface.ShowPitch(PitchAt(v.Pitch, offset))
	}
}
