// Package racesim drives a running raceledger over HTTP and checks that the
// settlement guarantees hold under concurrency.
package racesim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Players        int           // Number of simulated players
	RacesPerPlayer int           // Sequential races per player
	Workers        int           // Players simulated concurrently
	Timeout        time.Duration // HTTP request timeout
	Seed           int64         // Lobby and finish-order seed; 0 picks one
	Token          string        // Optional bearer token; anonymous mode otherwise
	Verbose        bool
}

// Race is one planned race for a player.
type Race struct {
	PlayerID     string    `json:"player_id"`
	RaceID       string    `json:"race_id"`
	LobbyRatings []float64 `json:"lobby_ratings"`
	PlayerIndex  int       `json:"player_index"`
	FinishOrder  []int     `json:"finish_order"`
	Place        int       `json:"place"`
	CoinBooster  bool      `json:"has_coin_booster"`
}

// Stats holds simulation counters.
type Stats struct {
	PlayersRegistered  int
	RacesStarted       int
	RacesSettled       int
	DuplicatesRejected int
	RewardsClaimed     int
	Failures           int
	Violations         []string
	Duration           time.Duration
}
