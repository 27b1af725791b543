// Package model contains domain models passed between layers.
package model

import "time"

// FlagState is the claim state of one promotion reward.
type FlagState int

const (
	FlagNotReached FlagState = 0
	FlagClaimable  FlagState = 1
	FlagClaimed    FlagState = 2
)

func (f FlagState) String() string {
	switch f {
	case FlagNotReached:
		return "not_reached"
	case FlagClaimable:
		return "claimable"
	case FlagClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// Profile is a player's persisted economy state.
type Profile struct {
	PlayerID    string `json:"player_id"`
	TrophyLevel int    `json:"trophy_level"`
	// CareerEarning only grows; Coins is the spendable balance.
	CareerEarning int `json:"career_earning"`
	Coins         int `json:"coins"`
	Experience    int `json:"experience"`
	Gems          int `json:"gems"`
	TotalRaces    int `json:"total_races"`
	// Inventory counts granted items by name, e.g. "Rare Key".
	Inventory      map[string]int       `json:"inventory,omitempty"`
	PromotionFlags map[string]FlagState `json:"promotion_flags,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewProfile returns an empty profile.
func NewProfile(playerID string, now time.Time) *Profile {
	return &Profile{
		PlayerID:       playerID,
		Inventory:      map[string]int{},
		PromotionFlags: map[string]FlagState{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Inventory = make(map[string]int, len(p.Inventory))
	for k, v := range p.Inventory {
		c.Inventory[k] = v
	}
	c.PromotionFlags = make(map[string]FlagState, len(p.PromotionFlags))
	for k, v := range p.PromotionFlags {
		c.PromotionFlags[k] = v
	}
	return &c
}

// Flag returns the state of a promotion reward; absent keys are not reached.
func (p *Profile) Flag(key string) FlagState {
	return p.PromotionFlags[key]
}

// SetFlag records a promotion reward state.
func (p *Profile) SetFlag(key string, state FlagState) {
	if p.PromotionFlags == nil {
		p.PromotionFlags = map[string]FlagState{}
	}
	p.PromotionFlags[key] = state
}

// AddItem increments an inventory counter.
func (p *Profile) AddItem(item string, n int) {
	if p.Inventory == nil {
		p.Inventory = map[string]int{}
	}
	p.Inventory[item] += n
}
