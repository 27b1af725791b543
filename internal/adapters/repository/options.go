package repository

import (
	"time"

	"github.com/okian/raceledger/internal/domain/model"
)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background record-count
// gauges. Non-positive values keep the default.
func WithMetricsUpdateInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithSeedProfiles preloads profiles, mainly for tests and the simulator.
func WithSeedProfiles(profiles ...*model.Profile) MemoryOption {
	return func(s *MemoryStore) {
		for _, p := range profiles {
			if p != nil {
				s.profiles[p.PlayerID] = p.Clone()
			}
		}
	}
}
