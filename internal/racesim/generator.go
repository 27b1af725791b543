package racesim

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

const (
	minLobby   = 2
	maxLobby   = 8
	maxRating  = 4000
	boosterOdd = 5 // one race in boosterOdd uses a coin booster
)

// Plan builds the races of every player. The same seed gives the same plan
// apart from race ids.
func Plan(cfg *Config) map[string][]Race {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // simulation only
	out := make(map[string][]Race, cfg.Players)
	for p := 0; p < cfg.Players; p++ {
		id := fmt.Sprintf("sim-%04d", p)
		races := make([]Race, cfg.RacesPerPlayer)
		for i := range races {
			races[i] = planRace(rng, id)
		}
		out[id] = races
	}
	return out
}

func planRace(rng *rand.Rand, playerID string) Race {
	n := minLobby + rng.Intn(maxLobby-minLobby+1)
	ratings := make([]float64, n)
	for i := range ratings {
		ratings[i] = float64(rng.Intn(maxRating))
	}
	idx := rng.Intn(n)
	order := rng.Perm(n)
	place := 0
	for i, racer := range order {
		if racer == idx {
			place = i + 1
		}
	}
	return Race{
		PlayerID:     playerID,
		RaceID:       uuid.NewString(),
		LobbyRatings: ratings,
		PlayerIndex:  idx,
		FinishOrder:  order,
		Place:        place,
		CoinBooster:  rng.Intn(boosterOdd) == 0,
	}
}
