package playback

// Source is what an Output pulls samples from. Fill is called from the
// output's real-time thread and must not block.
type Source interface {
	Fill(out []float32)
	SampleRate() int
}

// Output is an audio device. Start begins pulling from src on the device's
// own thread; Stop halts the stream and does not return until the last
// in-flight Fill has completed. An Output can be started again after Stop.
type Output interface {
	Start(src Source) error
	Stop() error
	Close() error
}
