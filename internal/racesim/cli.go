package racesim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/raceledger/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger writing to stdout and a file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "race_sim_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information.
func ShowHelp() {
	os.Stdout.WriteString(`raceledger race simulator
=========================

Registers players against a running raceledger, drives start/finish races
concurrently and checks the settlement guarantees.

Usage:
  go run ./cmd/race-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of simulated players (default 100)
  -races int
        Races per player (default 10)
  -workers int
        Players simulated concurrently (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Seed for lobbies and finish orders (default: current time)
  -token string
        Bearer token; anonymous X-Player-ID mode when empty
  -log string
        Log file (default: race_sim_TIMESTAMP.log)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  go run ./cmd/race-sim -players 500 -races 20 -workers 32
`)
}
