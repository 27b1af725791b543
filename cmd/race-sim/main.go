package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/raceledger/internal/racesim"
	"github.com/okian/raceledger/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers  = 100
	defaultRaces    = 10
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 30 * time.Second
	defaultDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players = flag.Int("players", defaultPlayers, "Number of simulated players")
		races   = flag.Int("races", defaultRaces, "Races per player")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Players simulated concurrently")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", 0, "Seed for lobbies and finish orders (default: current time)")
		token   = flag.String("token", "", "Bearer token; anonymous mode when empty")
		logFile = flag.String("log", "", "Log file (default: race_sim_TIMESTAMP.log)")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		racesim.ShowHelp()
		return
	}

	if err := racesim.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeadline)
	defer cancel()

	cfg := &racesim.Config{
		BaseURL:        *baseURL,
		Players:        *players,
		RacesPerPlayer: *races,
		Workers:        *workers,
		Timeout:        *timeout,
		Seed:           *seed,
		Token:          *token,
		Verbose:        *verbose,
	}

	if _, err := racesim.Run(ctx, cfg, logger.Get()); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
