package model

import "time"

// Lobby is the rating snapshot taken when a race starts.
type Lobby struct {
	Ratings     []float64 `json:"ratings"`
	PlayerIndex int       `json:"player_index"`
}

// NewLobby copies ratings so later mutation by the caller cannot leak in.
func NewLobby(ratings []float64, playerIndex int) Lobby {
	return Lobby{Ratings: append([]float64(nil), ratings...), PlayerIndex: playerIndex}
}

// Size is the number of racers.
func (l Lobby) Size() int { return len(l.Ratings) }

// RaceSession is the record created by start and closed by finish.
type RaceSession struct {
	RaceID      string    `json:"race_id"`
	PlayerID    string    `json:"player_id"`
	PlayerIndex int       `json:"player_index"`
	Ratings     []float64 `json:"lobby_ratings"`
	// PreDeductedDelta is what start actually removed after the zero floor.
	PreDeductedDelta int `json:"pre_deducted_delta"`
	// OriginalCalculatedDelta is the unfloored last-place delta.
	OriginalCalculatedDelta int `json:"original_calculated_delta"`
	// OriginalTrophies is the trophy level before start; nil on sessions
	// written before it was recorded.
	OriginalTrophies *int       `json:"original_trophies,omitempty"`
	Settled          bool       `json:"settled"`
	StartedAt        time.Time  `json:"started_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

// Lobby rebuilds the captured snapshot.
func (s *RaceSession) Lobby() Lobby {
	return NewLobby(s.Ratings, s.PlayerIndex)
}

// Clone returns a deep copy.
func (s *RaceSession) Clone() *RaceSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Ratings = append([]float64(nil), s.Ratings...)
	if s.OriginalTrophies != nil {
		v := *s.OriginalTrophies
		c.OriginalTrophies = &v
	}
	if s.SettledAt != nil {
		v := *s.SettledAt
		c.SettledAt = &v
	}
	return &c
}

// BaselineTrophies is the trophy level the race is settled against. Legacy
// sessions reconstruct it from the current level plus the deduction.
func (s *RaceSession) BaselineTrophies(current int) int {
	if s.OriginalTrophies != nil {
		return *s.OriginalTrophies
	}
	d := s.PreDeductedDelta
	if d < 0 {
		d = -d
	}
	return current + d
}
