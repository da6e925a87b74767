package playback

import (
	"sync"
	"time"
)

// Headless is an Output with no device behind it. A ticker goroutine pulls
// one buffer of frames every frames/sampleRate seconds, which is how a sound
// card consumes samples, so the controller's cursor advances in real time.
type Headless struct {
	sampleRate int
	frames     int

	mu     sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
	pulled int64
}

const DefaultHeadlessFrames = 512

func NewHeadless(sampleRate, frames int) *Headless {
	if frames <= 0 {
		frames = DefaultHeadlessFrames
	}
	return &Headless{sampleRate: sampleRate, frames: frames}
}

func (h *Headless) Start(src Source) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.stop != nil {
		return nil
	}

	rate := h.sampleRate
	if rate <= 0 {
		rate = src.SampleRate()
	}
	if rate <= 0 {
		return ErrNoSamples
	}
	period := time.Duration(h.frames) * time.Second / time.Duration(rate)

	stop := make(chan struct{})
	h.stop = stop
	h.wg.Add(1)
	go h.loop(src, period, stop)
	return nil
}

func (h *Headless) loop(src Source, period time.Duration, stop <-chan struct{}) {
	defer h.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]float32, h.frames)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			src.Fill(buf)
			h.mu.Lock()
			h.pulled += int64(len(buf))
			h.mu.Unlock()
		}
	}
}

// Stop joins the pull goroutine.
func (h *Headless) Stop() error {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	h.wg.Wait()
	return nil
}

func (h *Headless) Close() error {
	err := h.Stop()
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return err
}

// Pulled reports how many frames have been requested from sources so far.
func (h *Headless) Pulled() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pulled
}
