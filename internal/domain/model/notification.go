package model

import (
	"context"
	"time"
)

// NotificationKind names what happened.
type NotificationKind string

const (
	KindRaceStarted   NotificationKind = "RaceStarted"
	KindRaceSettled   NotificationKind = "RaceSettled"
	KindRewardClaimed NotificationKind = "RewardClaimed"
)

// Notification is an after-commit fact published to sinks. Delivery is best
// effort; the stored profile is authoritative.
type Notification struct {
	ID       string           `json:"id"`
	Kind     NotificationKind `json:"kind"`
	PlayerID string           `json:"player_id"`
	RaceID   string           `json:"race_id,omitempty"`
	At       time.Time        `json:"at"`
	Data     any              `json:"data,omitempty"`
}

// Publisher accepts notifications after a transaction commits. Publish must
// not block.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(context.Context, Notification) {}
