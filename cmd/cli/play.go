package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/internal/render"
	"github.com/himanishpuri/AudioScope/internal/session"
	"github.com/himanishpuri/AudioScope/pkg/audioscope"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

// barWidth is the number of columns the text playhead bar spans.
const barWidth = 60

// textSurface draws the playhead as a one-line progress bar on a terminal.
type textSurface struct {
	mu       sync.Mutex
	w        io.Writer
	duration float64
}

func (s *textSurface) setDuration(d float64) {
	s.mu.Lock()
	s.duration = d
	s.mu.Unlock()
}

func (s *textSurface) DrawMarker(view overlay.ViewKind, x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := int(x + 0.5)
	bar := make([]byte, barWidth)
	for i := range bar {
		switch {
		case i == col:
			bar[i] = '|'
		case i < col:
			bar[i] = '='
		default:
			bar[i] = '-'
		}
	}
	t := 0.0
	if barWidth > 1 {
		t = x / float64(barWidth-1) * s.duration
	}
	fmt.Fprintf(s.w, "\r[%s] %s %7.2fs / %.2fs", view, bar, t, s.duration)
	if view != overlay.Pitch {
		fmt.Fprint(s.w, "                  ")
	}
}

func (s *textSurface) ShowPitch(hz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hz <= 0 {
		fmt.Fprint(s.w, "  Pitch: N/A       ")
		return
	}
	fmt.Fprintf(s.w, "  Pitch: %7.1f Hz", hz)
}

// player ties a session to the overlay currently following its controller.
// A reload creates a new controller, so the overlay is rebuilt with it.
type player struct {
	svc     audioscope.Service
	sess    *session.Session
	surface *textSurface
	view    overlay.ViewKind

	ov     *overlay.Overlay
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *player) attach() error {
	p.detach()

	buf, err := p.sess.Buffer()
	if err != nil {
		return err
	}
	p.surface.setDuration(buf.DurationSeconds())

	ov, err := p.svc.NewOverlay(p.sess, p.surface, p.view, barWidth)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.ov, p.cancel, p.done = ov, cancel, make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ov.Run(ctx)
	}(p.done)
	return nil
}

func (p *player) detach() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

// setView switches the plotted view. Features already computed for the
// current recording are reused.
func (p *player) setView(view overlay.ViewKind) error {
	d, err := audioscope.RenderData(p.sess, view, -1)
	if err != nil {
		return err
	}
	p.view = view
	p.ov.SetView(overlay.View{Kind: view, Axis: render.Axis(barWidth, d), Pitch: d.Pitch})
	return nil
}

func (p *player) controller() *playback.Controller {
	c, _ := p.sess.Player()
	return c
}

func handlePlay(args []string) {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)
	playCmd := flag.NewFlagSet("play", flag.ExitOnError)
	viewName := playCmd.String("view", "waveform", "Initial view: waveform, spectrogram or pitch")
	playCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: audioscope play <audio_file> [--view waveform|spectrogram|pitch]")
		os.Exit(1)
	}
	view, err := overlay.ParseView(*viewName)
	if err != nil {
		red.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	sess, err := svc.NewSession()
	if err != nil {
		red.Printf("❌ Failed to create session: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	p := &player{svc: svc, sess: sess, surface: &textSurface{w: os.Stdout}, view: view}
	defer p.detach()

	if err := loadInto(p, audioPath); err != nil {
		red.Printf("❌ %v\n", err)
		log.Errorf("Load failed: %v", err)
		os.Exit(1)
	}

	printPlayHelp()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fields = []string{"p"}
		}
		if quit := runPlayCommand(p, fields); quit {
			break
		}
	}
	if c := p.controller(); c != nil {
		c.Stop()
	}
	fmt.Println()
}

func loadInto(p *player, path string) error {
	fmt.Println("Loading audio...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := p.sess.Load(ctx, path); err != nil {
		return err
	}
	if err := p.attach(); err != nil {
		return err
	}
	buf, _ := p.sess.Buffer()
	green.Printf("✅ Loaded %s\n", path)
	fmt.Printf("Duration: %.2f seconds\n", buf.DurationSeconds())
	return nil
}

// runPlayCommand executes one line typed at the play prompt and reports
// whether the loop should end.
func runPlayCommand(p *player, fields []string) bool {
	c := p.controller()
	if c == nil {
		red.Println("❌ No audio loaded")
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true

	case "p", "play", "pause":
		if c.Status() == playback.Playing {
			if err := c.Pause(); err != nil {
				red.Printf("❌ %v\n", err)
				return false
			}
			yellow.Println("Paused.")
			return false
		}
		if err := c.Play(); err != nil {
			red.Printf("❌ Playback failed: %v\n", err)
			return false
		}
		green.Printf("Playing from %.2f seconds\n", c.Offset())

	case "s", "stop":
		if err := c.Stop(); err != nil {
			red.Printf("❌ %v\n", err)
			return false
		}
		yellow.Println("Stopped.")

	case "seek":
		if len(fields) < 2 {
			fmt.Println("Usage: seek <seconds> | seek +<seconds> | seek -<seconds>")
			return false
		}
		t, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			red.Printf("❌ Invalid position: %v\n", err)
			return false
		}
		if strings.HasPrefix(fields[1], "+") || strings.HasPrefix(fields[1], "-") {
			t += c.Offset()
		}
		if err := c.Seek(t); err != nil {
			red.Printf("❌ Seek failed: %v\n", err)
			return false
		}
		fmt.Printf("Position: %.2f seconds\n", c.Offset())

	case "click":
		if len(fields) < 2 {
			fmt.Printf("Usage: click <column 0-%d>\n", barWidth-1)
			return false
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			red.Printf("❌ Invalid column: %v\n", err)
			return false
		}
		if err := p.ov.Click(x); err != nil {
			red.Printf("❌ %v\n", err)
		}
		fmt.Println()

	case "view":
		if len(fields) < 2 {
			fmt.Println("Usage: view waveform|spectrogram|pitch")
			return false
		}
		view, err := overlay.ParseView(strings.Join(fields[1:], " "))
		if err != nil {
			red.Printf("❌ %v\n", err)
			return false
		}
		if err := p.setView(view); err != nil {
			red.Printf("❌ %v\n", err)
			return false
		}
		fmt.Println()

	case "export":
		out := "view.png"
		if len(fields) > 1 {
			out = fields[1]
		}
		d, err := audioscope.RenderData(p.sess, p.view, c.Offset())
		if err == nil {
			err = render.SavePNG(out, render.DefaultWidth, render.DefaultHeight, p.view, d)
		}
		if err != nil {
			red.Printf("❌ Export failed: %v\n", err)
			return false
		}
		green.Printf("✅ Saved %s view to %s\n", p.view, out)

	case "info":
		printSessionInfo(p.sess)

	case "load":
		if len(fields) < 2 {
			fmt.Println("Usage: load <audio_file>")
			return false
		}
		if err := loadInto(p, strings.Join(fields[1:], " ")); err != nil {
			red.Printf("❌ %v\n", err)
		}

	case "h", "help", "?":
		printPlayHelp()

	default:
		fmt.Printf("Unknown command: %s (type 'help')\n", fields[0])
	}
	return false
}

func printSessionInfo(sess *session.Session) {
	tempo, err := sess.Tempo()
	if err != nil {
		red.Printf("❌ Tempo: %v\n", err)
		return
	}
	key, err := sess.Key()
	if err != nil {
		red.Printf("❌ Key: %v\n", err)
		return
	}
	fmt.Printf("Tempo: %.2f BPM", tempo.BPM)
	if tempo.Fallback {
		yellow.Print(" (default)")
	}
	fmt.Print("\nKey:   ")
	bold.Println(key)
}

func printPlayHelp() {
	fmt.Println("\nCommands:")
	fmt.Println("  p | <enter>        play / pause")
	fmt.Println("  s                  stop (rewinds to 0)")
	fmt.Println("  seek <sec|+n|-n>   move the playhead")
	fmt.Printf("  click <0-%d>       seek to a column of the bar\n", barWidth-1)
	fmt.Println("  view <name>        waveform, spectrogram or pitch")
	fmt.Println("  export [file.png]  save the current view with the playhead")
	fmt.Println("  info               tempo and key")
	fmt.Println("  load <file>        open another recording")
	fmt.Println("  q                  quit")
}
