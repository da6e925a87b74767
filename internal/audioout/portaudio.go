// Package audioout connects the playback controller to the sound card.
package audioout

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/himanishpuri/AudioScope/internal/playback"
)

const DefaultFramesPerBuffer = 1024

// PortAudio plays a mono playback.Source on the default output device.
// Each Start opens a fresh stream at the source's sample rate.
type PortAudio struct {
	framesPerBuffer int

	mu     sync.Mutex
	stream *portaudio.Stream
	closed bool
}

// NewPortAudio initializes the PortAudio library. Close terminates it.
func NewPortAudio(framesPerBuffer int) (*PortAudio, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudio{framesPerBuffer: framesPerBuffer}, nil
}

func (p *PortAudio) Start(src playback.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return playback.ErrClosed
	}
	if p.stream != nil {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(
		0, // input channels
		1, // output channels
		float64(src.SampleRate()),
		p.framesPerBuffer,
		func(out []float32) { src.Fill(out) },
	)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	p.stream = stream
	return nil
}

// Stop returns once the stream has drained and the callback has exited.
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *PortAudio) stopLocked() error {
	if p.stream == nil {
		return nil
	}
	stream := p.stream
	p.stream = nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	if stopErr != nil {
		return fmt.Errorf("failed to stop audio stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close audio stream: %w", closeErr)
	}
	return nil
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	err := p.stopLocked()
	if termErr := portaudio.Terminate(); termErr != nil && err == nil {
		err = fmt.Errorf("failed to terminate portaudio: %w", termErr)
	}
	return err
}

var _ playback.Output = (*PortAudio)(nil)
