package racesim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/raceledger/pkg/logger"
)

// ErrViolations is returned when the run saw a broken guarantee.
var ErrViolations = errors.New("settlement guarantees violated")

const healthTimeout = 5 * time.Second

type counters struct {
	registered atomic.Int64
	started    atomic.Int64
	settled    atomic.Int64
	duplicates atomic.Int64
	claimed    atomic.Int64
	failures   atomic.Int64
}

type runner struct {
	cfg    *Config
	client *client
	log    logger.Logger
	c      counters
	l      ledger
}

// Run executes the simulation. It returns the stats and ErrViolations when
// any check failed.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Players < 1 || cfg.RacesPerPlayer < 1 {
		return nil, fmt.Errorf("players and races must be positive")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	r := &runner{cfg: cfg, client: newClient(cfg), log: log}
	start := time.Now()

	log.Info(ctx, "starting race simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("races", cfg.RacesPerPlayer),
		logger.Int("workers", workers),
		logger.Int64("seed", cfg.Seed))

	if err := r.client.health(ctx, healthTimeout); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	plan := Plan(cfg)
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				r.player(ctx, id, plan[id])
			}
		}()
	}
feed:
	for id := range plan {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats := &Stats{
		PlayersRegistered:  int(r.c.registered.Load()),
		RacesStarted:       int(r.c.started.Load()),
		RacesSettled:       int(r.c.settled.Load()),
		DuplicatesRejected: int(r.c.duplicates.Load()),
		RewardsClaimed:     int(r.c.claimed.Load()),
		Failures:           int(r.c.failures.Load()),
		Violations:         r.l.list(),
		Duration:           time.Since(start),
	}
	displayFinalStats(ctx, log, stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(stats.Violations) > 0 {
		return stats, ErrViolations
	}
	return stats, nil
}

// player registers, races and claims for one player, then checks the
// resulting profile.
func (r *runner) player(ctx context.Context, id string, races []Race) {
	code, err := r.client.do(ctx, http.MethodPost, "/profile", id, nil, nil)
	if err != nil || (code != http.StatusCreated && code != http.StatusOK) {
		r.fail(ctx, id, "register", code, err)
		return
	}
	r.c.registered.Add(1)

	settled, coins := 0, 0
	for _, race := range races {
		if ctx.Err() != nil {
			return
		}
		c, ok := r.race(ctx, race)
		if ok {
			settled++
			coins += c
		}
	}
	r.claimAll(ctx, id)

	var v profileView
	code, err = r.client.do(ctx, http.MethodGet, "/profile", id, nil, &v)
	if err != nil || code != http.StatusOK {
		r.fail(ctx, id, "profile", code, err)
		return
	}
	checkProfile(&v, settled, coins, &r.l)
	r.log.Debug(ctx, "player done",
		logger.String("player", id),
		logger.Int("trophies", v.TrophyLevel),
		logger.String("rank", v.Rank))
}

type finishBody struct {
	RaceID      string `json:"race_id"`
	FinishOrder []int  `json:"finish_order"`
	Place       int    `json:"place"`
	CoinBooster bool   `json:"has_coin_booster"`
}

type finishReply struct {
	TrophyLevel int `json:"trophy_level"`
	Coins       int `json:"coins"`
}

// race starts one race and sends two finishes concurrently. Exactly one
// must settle and the other must be rejected as a conflict.
func (r *runner) race(ctx context.Context, race Race) (int, bool) {
	start := struct {
		RaceID       string    `json:"race_id"`
		LobbyRatings []float64 `json:"lobby_ratings"`
		PlayerIndex  int       `json:"player_index"`
	}{race.RaceID, race.LobbyRatings, race.PlayerIndex}
	code, err := r.client.do(ctx, http.MethodPost, "/races/start", race.PlayerID, start, nil)
	if err != nil || code != http.StatusOK {
		r.fail(ctx, race.PlayerID, "start", code, err)
		return 0, false
	}
	r.c.started.Add(1)

	body := finishBody{RaceID: race.RaceID, FinishOrder: race.FinishOrder, Place: race.Place, CoinBooster: race.CoinBooster}
	var (
		wg      sync.WaitGroup
		codes   [2]int
		errs    [2]error
		replies [2]finishReply
	)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = r.client.do(ctx, http.MethodPost, "/races/finish", race.PlayerID, body, &replies[i])
		}(i)
	}
	wg.Wait()

	ok, conflicts, coins := 0, 0, 0
	for i := range codes {
		if errs[i] != nil {
			r.fail(ctx, race.PlayerID, "finish", codes[i], errs[i])
			continue
		}
		switch codes[i] {
		case http.StatusOK:
			ok++
			coins = replies[i].Coins
			if replies[i].TrophyLevel < 0 {
				r.l.addf("%s: race %s left %d trophies", race.PlayerID, race.RaceID, replies[i].TrophyLevel)
			}
		case http.StatusConflict:
			conflicts++
		default:
			r.fail(ctx, race.PlayerID, "finish", codes[i], nil)
		}
	}
	r.c.duplicates.Add(int64(conflicts))
	if ok != 1 || conflicts != 1 {
		r.l.addf("%s: race %s settled %d times with %d conflicts", race.PlayerID, race.RaceID, ok, conflicts)
	}
	if ok == 0 {
		return 0, false
	}
	r.c.settled.Add(1)
	return coins, true
}

// claimAll claims every claimable reward and checks a second claim is
// rejected.
func (r *runner) claimAll(ctx context.Context, id string) {
	var rewards []rewardState
	code, err := r.client.do(ctx, http.MethodGet, "/rewards", id, nil, &rewards)
	if err != nil || code != http.StatusOK {
		r.fail(ctx, id, "rewards", code, err)
		return
	}
	for _, rw := range rewards {
		if rw.State != "claimable" {
			continue
		}
		req := map[string]string{"reward_key": rw.Key}
		code, err := r.client.do(ctx, http.MethodPost, "/rewards/claim", id, req, nil)
		if err != nil || code != http.StatusOK {
			r.fail(ctx, id, "claim", code, err)
			continue
		}
		r.c.claimed.Add(1)
		code, err = r.client.do(ctx, http.MethodPost, "/rewards/claim", id, req, nil)
		if err == nil && code != http.StatusConflict {
			r.l.addf("%s: second claim of %s returned %d", id, rw.Key, code)
		}
	}
}

func (r *runner) fail(ctx context.Context, playerID, step string, code int, err error) {
	r.c.failures.Add(1)
	r.l.addf("%s: %s failed with status %d", playerID, step, code)
	fields := []logger.Field{logger.String("player", playerID), logger.String("step", step), logger.Int("status", code)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	r.log.Warn(ctx, "request failed", fields...)
}

func displayFinalStats(ctx context.Context, log logger.Logger, s *Stats) {
	log.Info(ctx, "race simulation completed",
		logger.String("duration", s.Duration.String()),
		logger.Int("players", s.PlayersRegistered),
		logger.Int("racesStarted", s.RacesStarted),
		logger.Int("racesSettled", s.RacesSettled),
		logger.Int("duplicatesRejected", s.DuplicatesRejected),
		logger.Int("rewardsClaimed", s.RewardsClaimed),
		logger.Int("failures", s.Failures),
		logger.Int("violations", len(s.Violations)))
	for _, v := range s.Violations {
		log.Warn(ctx, "violation", logger.String("detail", v))
	}
}
