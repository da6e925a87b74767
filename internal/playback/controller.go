package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

var (
	ErrClosed    = errors.New("playback controller is closed")
	ErrNoSamples = errors.New("nothing to play")
)

type Status int32

const (
	Stopped Status = iota
	Playing
	Paused
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// State is a snapshot of the transport.
type State struct {
	Status        Status
	OffsetSeconds float64
}

type Options struct {
	Logger *logger.Logger
	// OnComplete runs on the controller's watcher goroutine after the buffer
	// has played to the end and the transport has reset to Stopped.
	OnComplete func()
}

// Controller owns the transport for one SampleBuffer.
//
// The position is a frame cursor advanced only by Fill, i.e. by the device
// as it consumes samples, so Offset tracks what the hardware has pulled.
// Fill never takes a lock. Transport methods are serialized by mu and
// always halt the device (joining its callback) before moving the cursor.
type Controller struct {
	buf        *audio.SampleBuffer
	out        Output
	log        *logger.Logger
	onComplete func()

	status atomic.Int32
	cursor atomic.Int64

	mu     sync.Mutex
	closed bool

	done chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewController(buf *audio.SampleBuffer, out Output, opts Options) (*Controller, error) {
	if buf == nil {
		return nil, ErrNoSamples
	}
	if out == nil {
		return nil, errors.New("playback output is nil")
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Controller{
		buf:        buf,
		out:        out,
		log:        log.Named("playback"),
		onComplete: opts.OnComplete,
		done:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
	c.wg.Add(1)
	go c.watch()
	return c, nil
}

func (c *Controller) SampleRate() int { return c.buf.SampleRate() }

func (c *Controller) Duration() float64 { return c.buf.DurationSeconds() }

func (c *Controller) Status() Status { return Status(c.status.Load()) }

// Offset is the playback position in seconds, always in [0, Duration()].
func (c *Controller) Offset() float64 {
	pos := c.cursor.Load()
	if n := int64(c.buf.Len()); pos > n {
		pos = n
	}
	if pos < 0 {
		pos = 0
	}
	return float64(pos) / float64(c.buf.SampleRate())
}

// State reads status and offset as a pair; the read is retried if the
// status changed in between, so a completion reset is never observed half
// applied.
func (c *Controller) State() State {
	for {
		s := c.Status()
		off := c.Offset()
		if c.Status() == s {
			return State{Status: s, OffsetSeconds: off}
		}
	}
}

// Play starts output from the current offset. It is a no-op while playing.
// If the device cannot be started the transport stays Stopped.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.Status() == Playing {
		return nil
	}
	if c.buf.Len() == 0 {
		return ErrNoSamples
	}

	c.status.Store(int32(Playing))
	if err := c.out.Start(c); err != nil {
		c.status.Store(int32(Stopped))
		c.log.Warnf("output failed to start: %v", err)
		return fmt.Errorf("starting output: %w", err)
	}
	c.log.Infof("Playing from %.2f seconds", c.Offset())
	return nil
}

// Pause freezes the offset. It only has an effect while playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.Status() != Playing {
		return nil
	}

	c.status.Store(int32(Paused))
	if err := c.out.Stop(); err != nil {
		return fmt.Errorf("stopping output: %w", err)
	}
	c.log.Infof("Paused at %.2f seconds", c.Offset())
	return nil
}

// Stop halts output and rewinds to 0. Valid from any state.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	was := c.Status()
	c.status.Store(int32(Stopped))

	var err error
	if was == Playing {
		err = c.out.Stop()
	}
	c.cursor.Store(0)
	if err != nil {
		return fmt.Errorf("stopping output: %w", err)
	}
	if was != Stopped {
		c.log.Debugf("Stopped.")
	}
	return nil
}

// Seek moves the offset to t seconds, clamped to [0, Duration()]. NaN maps
// to 0. While playing the device is restarted from the new offset and the
// status is unchanged; if that restart fails the transport stops.
func (c *Controller) Seek(t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	frame := c.frameAt(t)
	if c.Status() != Playing {
		c.cursor.Store(frame)
		return nil
	}

	if err := c.out.Stop(); err != nil {
		c.status.Store(int32(Stopped))
		return fmt.Errorf("stopping output for seek: %w", err)
	}
	c.cursor.Store(frame)
	if err := c.out.Start(c); err != nil {
		c.status.Store(int32(Stopped))
		c.log.Warnf("output failed to restart after seek: %v", err)
		return fmt.Errorf("restarting output: %w", err)
	}
	c.log.Debugf("Seeked to %.2f seconds", c.Offset())
	return nil
}

func (c *Controller) frameAt(t float64) int64 {
	duration := c.Duration()
	switch {
	case math.IsNaN(t), t <= 0:
		return 0
	case t >= duration:
		return int64(c.buf.Len())
	}
	frame := int64(math.Round(t * float64(c.buf.SampleRate())))
	if n := int64(c.buf.Len()); frame > n {
		frame = n
	}
	return frame
}

// Fill copies the next len(out) samples into out and advances the cursor.
// Anything past the end of the buffer, or any call while not playing, is
// silence. Reaching the end schedules the transition to Stopped.
func (c *Controller) Fill(out []float32) {
	samples := c.buf.Samples()
	n := int64(len(samples))

	for {
		if Status(c.status.Load()) != Playing {
			clear(out)
			return
		}
		pos := c.cursor.Load()
		if pos >= n {
			clear(out)
			c.signalDone()
			return
		}
		end := pos + int64(len(out))
		if end > n {
			end = n
		}
		if !c.cursor.CompareAndSwap(pos, end) {
			continue
		}
		copied := copy(out, samples[pos:end])
		clear(out[copied:])
		if end == n {
			c.signalDone()
		}
		return
	}
}

func (c *Controller) signalDone() {
	select {
	case c.done <- struct{}{}:
	default:
	}
}

// watch turns end-of-buffer signals from Fill into the Stopped transition.
// A signal is ignored if a seek or stop has already moved the cursor.
func (c *Controller) watch() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case <-c.done:
			if c.complete() && c.onComplete != nil {
				c.onComplete()
			}
		}
	}
}

func (c *Controller) complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.Status() != Playing || c.cursor.Load() < int64(c.buf.Len()) {
		return false
	}
	if err := c.stopLocked(); err != nil {
		c.log.Warnf("stopping after completion: %v", err)
	}
	c.log.Infof("Playback finished")
	return true
}

// Close stops the device, waits for its callback to return and releases it.
// The buffer is not touched by the controller after Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	stopErr := c.stopLocked()
	c.closed = true
	closeErr := c.out.Close()
	close(c.quit)
	c.mu.Unlock()

	c.wg.Wait()
	return errors.Join(stopErr, closeErr)
}
