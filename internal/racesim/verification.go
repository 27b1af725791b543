package racesim

import (
	"fmt"
	"sync"
)

// ledger collects violations from concurrent players.
type ledger struct {
	mu         sync.Mutex
	violations []string
}

func (l *ledger) addf(format string, args ...any) {
	l.mu.Lock()
	l.violations = append(l.violations, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *ledger) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.violations...)
}

// profileView is the subset of GET /profile the checks read.
type profileView struct {
	PlayerID       string         `json:"player_id"`
	TrophyLevel    int            `json:"trophy_level"`
	CareerEarning  int            `json:"career_earning"`
	Coins          int            `json:"coins"`
	TotalRaces     int            `json:"total_races"`
	PromotionFlags map[string]int `json:"promotion_flags"`
	Rank           string         `json:"rank"`
}

type rewardState struct {
	Key   string `json:"key"`
	State string `json:"state"`
}

// checkProfile compares the final profile with what the run observed.
func checkProfile(v *profileView, settled, coins int, l *ledger) {
	if v.TrophyLevel < 0 {
		l.addf("%s: negative trophy level %d", v.PlayerID, v.TrophyLevel)
	}
	if v.TotalRaces != settled {
		l.addf("%s: total_races %d, settled %d", v.PlayerID, v.TotalRaces, settled)
	}
	if v.CareerEarning != coins {
		l.addf("%s: career_earning %d, summed rewards %d", v.PlayerID, v.CareerEarning, coins)
	}
	if v.Coins > v.CareerEarning {
		l.addf("%s: coins %d above career earning %d", v.PlayerID, v.Coins, v.CareerEarning)
	}
	for key, flag := range v.PromotionFlags {
		if flag < 0 || flag > 2 {
			l.addf("%s: flag %s has state %d", v.PlayerID, key, flag)
		}
	}
}
