package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/himanishpuri/AudioScope/internal/audioout"
	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/internal/session"
	"github.com/himanishpuri/AudioScope/pkg/audioscope"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

// Global flags
var (
	dbPath     string
	tempDir    string
	windowSize int
	hopSize    int
	headless   bool
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUDIOSCOPE_DB_PATH", "audioscope.sqlite3"), "Path to the SQLite history database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AUDIOSCOPE_TEMP_DIR", "/tmp"), "Directory for temporary audio conversion files")
	flag.IntVar(&windowSize, "window", 2048, "STFT window size in samples")
	flag.IntVar(&hopSize, "hop", 512, "STFT hop size in samples")
	flag.BoolVar(&headless, "headless", false, "Play without a sound card (clocked silent output)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a new AudioScope service with configured options
func createService() (audioscope.Service, error) {
	return audioscope.NewService(
		audioscope.WithDBPath(dbPath),
		audioscope.WithTempDir(tempDir),
		audioscope.WithWindowSize(windowSize),
		audioscope.WithHopSize(hopSize),
		audioscope.WithOutputFactory(outputFactory()),
	)
}

// outputFactory prefers the sound card and falls back to the headless
// output when PortAudio has no usable device.
func outputFactory() session.OutputFactory {
	if headless {
		return session.HeadlessOutputs
	}
	return func(sampleRate int) (playback.Output, error) {
		out, err := audioout.NewPortAudio(audioout.DefaultFramesPerBuffer)
		if err != nil {
			logger.GetLogger().Warnf("No audio device, playing headless: %v", err)
			return session.HeadlessOutputs(sampleRate)
		}
		return out, nil
	}
}

func main() {
	log := logger.GetLogger()

	printBanner()

	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "analyze":
		handleAnalyze(args[1:])
	case "play":
		handlePlay(args[1:])
	case "render":
		handleRender(args[1:])
	case "history":
		handleHistory(args[1:])
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
    _             _ _       ____
   / \  _   _  __| (_) ___ / ___|  ___ ___  _ __   ___
  / _ \| | | |/ _' | |/ _ \\___ \ / __/ _ \| '_ \ / _ \
 / ___ \ |_| | (_| | | (_) |___) | (_| (_) | |_) |  __/
/_/   \_\__,_|\__,_|_|\___/|____/ \___\___/| .__/ \___|
                                           |_|
           Audio Analysis & Playback CLI
`
	fmt.Println(banner)
}

// splitArgs separates the audio file from the flags that follow it.
func splitArgs(args []string) (string, []string) {
	var positional string
	var flagArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if positional == "" && !strings.HasPrefix(arg, "-") {
			positional = arg
			continue
		}
		flagArgs = append(flagArgs, arg)
	}
	return positional, flagArgs
}

func mustService() audioscope.Service {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		red.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

func handleAnalyze(args []string) {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)
	analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	showPitch := analyzeCmd.Bool("pitch", false, "Print the pitch track (one line per voiced frame)")
	analyzeCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: audioscope analyze <audio_file> [--pitch]")
		os.Exit(1)
	}

	fmt.Println("🔧 Initializing service...")
	svc := mustService()
	defer svc.Close()

	fmt.Println("Loading audio...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	report, err := svc.Analyze(ctx, audioPath)
	if err != nil {
		red.Printf("\n❌ Failed to analyze: %v\n", err)
		log.Errorf("Analyze failed: %v", err)
		os.Exit(1)
	}

	green.Printf("\n✅ Analyzed %s in %s\n\n", report.Path, time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Duration:    %.2f seconds\n", report.Duration.Seconds())
	fmt.Printf("   Sample rate: %s Hz\n", humanize.Comma(int64(report.SampleRate)))
	fmt.Printf("   Frames:      %s\n", humanize.Comma(int64(report.Frames)))
	if report.Fallback {
		fmt.Printf("   Tempo:       %.2f BPM ", report.BPM)
		yellow.Println("(no clear beat, default)")
	} else {
		fmt.Printf("   Tempo:       %.2f BPM\n", report.BPM)
	}
	fmt.Print("   Key:         ")
	bold.Println(report.Key)

	voiced := 0
	var lo, hi float64
	for _, p := range report.Pitch {
		if !p.Voiced {
			continue
		}
		if voiced == 0 || p.FrequencyHz < lo {
			lo = p.FrequencyHz
		}
		if p.FrequencyHz > hi {
			hi = p.FrequencyHz
		}
		voiced++
	}
	if voiced == 0 {
		fmt.Println("   Pitch:       N/A")
	} else {
		fmt.Printf("   Pitch:       %.1f - %.1f Hz (%d of %d frames voiced)\n", lo, hi, voiced, len(report.Pitch))
	}

	if *showPitch {
		fmt.Println()
		for _, p := range report.Pitch {
			if p.Voiced {
				fmt.Printf("   %8.3fs  %8.2f Hz\n", p.TimeSeconds, p.FrequencyHz)
			}
		}
	}
	if report.ID != "" {
		fmt.Printf("\n   History ID:  %s\n", report.ID)
	}
	log.Infof("Analysis complete: %s", audioPath)
}

func handleRender(args []string) {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(args)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	viewName := renderCmd.String("view", "spectrogram", "View to render: waveform, spectrogram or pitch")
	at := renderCmd.Float64("at", -1, "Playhead position in seconds (negative hides it)")
	out := renderCmd.String("out", "", "Output PNG path (default: <audio_file>.<view>.png)")
	renderCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: audioscope render <audio_file> [--view spectrogram] [--at 12.5] [--out file.png]")
		os.Exit(1)
	}

	view, err := overlay.ParseView(*viewName)
	if err != nil {
		red.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		*out = fmt.Sprintf("%s.%s.png", audioPath, strings.ToLower(strings.Fields(view.String())[0]))
	}

	svc := mustService()
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Printf("🎨 Rendering %s view...\n", view)
	if err := svc.ExportView(ctx, audioPath, view, *at, *out); err != nil {
		red.Printf("❌ Failed to render: %v\n", err)
		log.Errorf("ExportView failed: %v", err)
		os.Exit(1)
	}
	green.Printf("✅ Saved %s\n", *out)
}

func handleHistory(args []string) {
	log := logger.GetLogger()

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("limit", 20, "Maximum number of entries to show (0 for all)")
	historyCmd.Parse(args)

	svc := mustService()
	defer svc.Close()

	entries, err := svc.History(*limit)
	if err != nil {
		red.Printf("❌ Failed to list history: %v\n", err)
		log.Errorf("History failed: %v", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("\n📭 No analyses recorded yet")
		return
	}

	fmt.Printf("\n📚 %d analysis(es):\n\n", len(entries))
	for i, a := range entries {
		fmt.Printf("%d. %s\n", i+1, a.Path)
		fmt.Printf("   %s | %.2f BPM | ", a.Key, a.BPM)
		secs := a.DurationMs / 1000
		fmt.Printf("%d:%02d | %s Hz\n", secs/60, secs%60, humanize.Comma(int64(a.SampleRate)))
		fmt.Printf("   ID: %s (%s)\n\n", a.ID, humanize.Time(a.CreatedAt))
	}
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: audioscope delete <analysis_id>")
		os.Exit(1)
	}
	id := args[0]

	svc := mustService()
	defer svc.Close()

	entry, err := svc.GetAnalysis(id)
	if err != nil {
		if errors.Is(err, audioscope.ErrNotFound) {
			red.Printf("❌ Analysis not found (ID: %s)\n", id)
		} else {
			red.Printf("❌ Failed to look up analysis: %v\n", err)
		}
		log.Warnf("Analysis %s not found: %v", id, err)
		os.Exit(1)
	}

	if err := svc.DeleteAnalysis(id); err != nil {
		red.Printf("❌ Failed to delete analysis: %v\n", err)
		log.Errorf("DeleteAnalysis failed: %v", err)
		os.Exit(1)
	}

	green.Printf("\n✅ Deleted analysis of %s\n", entry.Path)
	fmt.Printf("   ID:      %s\n", entry.ID)
	fmt.Printf("   Key:     %s\n", entry.Key)
	fmt.Printf("   Tempo:   %s BPM\n", strconv.FormatFloat(entry.BPM, 'f', 2, 64))
}

func printUsage() {
	fmt.Println("AudioScope - Audio Analysis & Playback CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite history database (env: AUDIOSCOPE_DB_PATH, default: audioscope.sqlite3)")
	fmt.Println("  --temp <dir>       Temporary directory for audio conversion (env: AUDIOSCOPE_TEMP_DIR, default: /tmp)")
	fmt.Println("  --window <n>       STFT window size (default: 2048)")
	fmt.Println("  --hop <n>          STFT hop size (default: 512)")
	fmt.Println("  --headless         Play without a sound card")
	fmt.Println("\nUsage:")
	fmt.Println("  audioscope [global-options] analyze <audio_file> [--pitch]")
	fmt.Println("  audioscope [global-options] play <audio_file> [--view waveform|spectrogram|pitch]")
	fmt.Println("  audioscope [global-options] render <audio_file> [--view spectrogram] [--at <sec>] [--out <png>]")
	fmt.Println("  audioscope [global-options] history [--limit 20]")
	fmt.Println("  audioscope [global-options] delete <analysis_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Tempo, key and pitch summary")
	fmt.Println("  audioscope analyze song.mp3")
	fmt.Println()
	fmt.Println("  # Spectrogram with the playhead at 30s")
	fmt.Println("  audioscope render song.wav --view spectrogram --at 30 --out song.png")
	fmt.Println()
	fmt.Println("  # Interactive playback with a pitch readout")
	fmt.Println("  audioscope play song.flac --view pitch")
}
