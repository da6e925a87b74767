// Package render draws the waveform, spectrogram and pitch views to images,
// with an optional playhead marker.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/AudioScope/internal/analysis"
	"github.com/himanishpuri/AudioScope/internal/model"
	"github.com/himanishpuri/AudioScope/internal/overlay"
)

var (
	ErrNoData      = errors.New("no data for view")
	ErrBadSize     = errors.New("image size must be positive")
	ErrUnknownView = errors.New("unknown view")
)

const (
	DefaultWidth  = 1200
	DefaultHeight = 400

	// pitch axis ceiling when the track has no voiced frames
	defaultMaxPitchHz = 1000.0
)

var (
	background  = spectrogram.ParseColor("000000")
	waveColor   = spectrogram.ParseColor("4fc3f7")
	pitchColor  = spectrogram.ParseColor("66bb6a")
	markerColor = spectrogram.ParseColor("ff3030")
)

// Data is everything a view may need. Samples and SampleRate are always
// required since they define the time axis.
type Data struct {
	Samples     []float32
	SampleRate  int
	Spectrogram *model.Spectrogram
	// Decibels is computed from Spectrogram when nil.
	Decibels [][]float64
	Pitch    model.PitchTrack
	// Playhead in seconds; negative hides the marker.
	Playhead float64
}

func (d Data) duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}

// Render draws view into a new width x height image.
func Render(width, height int, view overlay.ViewKind, d Data) (draw.Image, error) {
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	if err := paint(img, view, d); err != nil {
		return nil, err
	}
	return img, nil
}

// SavePNG renders view and writes it to path.
func SavePNG(path string, width, height int, view overlay.ViewKind, d Data) error {
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	if err := paint(img, view, d); err != nil {
		return err
	}
	if err := spectrogram.SavePng(img, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// Axis returns the time axis of a view rendered at the given width, for
// mapping clicks and playhead positions.
func Axis(width int, d Data) overlay.TimeAxis {
	return overlay.TimeAxis{Origin: 0, Width: float64(width - 1), Duration: d.duration()}
}

func paint(img draw.Image, view overlay.ViewKind, d Data) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ErrBadSize
	}
	if d.SampleRate <= 0 || len(d.Samples) == 0 {
		return fmt.Errorf("%w: %s needs samples", ErrNoData, view)
	}

	draw.Draw(img, b, image.NewUniform(background), image.Point{}, draw.Src)

	var err error
	switch view {
	case overlay.Waveform:
		drawWaveform(img, d.Samples)
	case overlay.Spectrogram:
		err = drawSpectrogram(img, d)
	case overlay.Pitch:
		err = drawPitch(img, d)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownView, int(view))
	}
	if err != nil {
		return err
	}

	if d.Playhead >= 0 {
		x := int(math.Round(Axis(b.Dx(), d).X(d.Playhead)))
		vline(img, b.Min.X+x, b.Min.Y, b.Max.Y-1, markerColor)
	}
	return nil
}

// drawWaveform draws the min..max envelope of the samples under each column.
func drawWaveform(img draw.Image, samples []float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	mid := float64(h-1) / 2

	for x := 0; x < w; x++ {
		start := x * len(samples) / w
		end := (x + 1) * len(samples) / w
		if end <= start {
			end = start + 1
		}
		if end > len(samples) {
			end = len(samples)
		}
		lo, hi := float32(1), float32(-1)
		for _, s := range samples[start:end] {
			lo = min(lo, s)
			hi = max(hi, s)
		}
		lo = max(lo, -1)
		hi = min(hi, 1)
		y0 := int(math.Round(mid - float64(hi)*mid))
		y1 := int(math.Round(mid - float64(lo)*mid))
		vline(img, b.Min.X+x, b.Min.Y+y0, b.Min.Y+y1, waveColor)
	}
}

// drawSpectrogram maps frames to columns and bins to rows on a logarithmic
// frequency axis from the first bin to Nyquist, coloring by dB.
func drawSpectrogram(img draw.Image, d Data) error {
	spec := d.Spectrogram
	if spec == nil || len(spec.Frames) == 0 {
		return fmt.Errorf("%w: spectrogram", ErrNoData)
	}
	db := d.Decibels
	if db == nil {
		db = analysis.ToDecibels(spec)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	numBins := spec.NumBins()
	logMax := math.Log(float64(numBins - 1))

	rowBin := make([]int, h)
	for y := 0; y < h; y++ {
		frac := 1 - float64(y)/float64(max(h-1, 1))
		bin := int(math.Round(math.Exp(frac * logMax)))
		rowBin[y] = min(max(bin, 1), numBins-1)
	}

	frames := len(db)
	for x := 0; x < w; x++ {
		k := min(x*frames/w, frames-1)
		row := db[k]
		for y := 0; y < h; y++ {
			v := -analysis.TopDB
			if bin := rowBin[y]; bin < len(row) {
				v = row[bin]
			}
			img.Set(b.Min.X+x, b.Min.Y+y, heat((v+analysis.TopDB)/analysis.TopDB))
		}
	}
	return nil
}

// drawPitch connects consecutive voiced points; unvoiced frames break the line.
func drawPitch(img draw.Image, d Data) error {
	if d.Pitch == nil {
		return fmt.Errorf("%w: pitch track", ErrNoData)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	axis := Axis(w, d)

	maxHz := 0.0
	for _, p := range d.Pitch {
		if p.Voiced {
			maxHz = math.Max(maxHz, p.FrequencyHz)
		}
	}
	if maxHz == 0 {
		maxHz = defaultMaxPitchHz
	}
	maxHz *= 1.1

	yOf := func(hz float64) int {
		return int(math.Round(float64(h-1) * (1 - hz/maxHz)))
	}

	prevVoiced := false
	var px, py int
	for _, p := range d.Pitch {
		if !p.Voiced {
			prevVoiced = false
			continue
		}
		x := int(math.Round(axis.X(p.TimeSeconds)))
		y := yOf(p.FrequencyHz)
		if prevVoiced {
			line(img, b.Min.X+px, b.Min.Y+py, b.Min.X+x, b.Min.Y+y, pitchColor)
		} else {
			img.Set(b.Min.X+x, b.Min.Y+y, pitchColor)
		}
		px, py, prevVoiced = x, y, true
	}
	return nil
}

func vline(img draw.Image, x, y0, y1 int, c color.Color) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

func line(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	steps := max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		img.Set(x0, y0, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		img.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// heat maps v in [0,1] onto black, purple, orange, pale yellow.
func heat(v float64) color.Color {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(0, math.Min(1, v))
	stops := [...]color.RGBA{
		{0, 0, 4, 255},
		{120, 28, 109, 255},
		{237, 105, 37, 255},
		{252, 255, 164, 255},
	}
	pos := v * float64(len(stops)-1)
	i := min(int(pos), len(stops)-2)
	t := pos - float64(i)
	a, c := stops[i], stops[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + t*(float64(y)-float64(x)))) }
	return color.RGBA{lerp(a.R, c.R), lerp(a.G, c.G), lerp(a.B, c.B), 255}
}
