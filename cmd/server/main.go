package main

import (
	"flag"
	"os"
	"strings"

	"github.com/himanishpuri/AudioScope/pkg/audioscope"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

var (
	port           int
	dbPath         string
	tempDir        string
	windowSize     int
	hopSize        int
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUDIOSCOPE_DB_PATH", "audioscope.sqlite3"), "Path to SQLite history database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AUDIOSCOPE_TEMP_DIR", "/tmp"), "Temporary directory")
	flag.IntVar(&windowSize, "window", 2048, "STFT window size in samples")
	flag.IntVar(&hopSize, "hop", 512, "STFT hop size in samples")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(list string) []string {
	if list == "*" {
		return []string{"*"}
	}
	origins := strings.Split(list, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	// The server never plays audio, so sessions keep the default headless output.
	service, err := audioscope.NewService(
		audioscope.WithDBPath(dbPath),
		audioscope.WithTempDir(tempDir),
		audioscope.WithWindowSize(windowSize),
		audioscope.WithHopSize(hopSize),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		TempDir:        tempDir,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
