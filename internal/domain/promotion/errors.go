package promotion

import "errors"

var (
	// ErrAlreadyClaimed is returned when a reward's flag is already 2.
	ErrAlreadyClaimed = errors.New("reward already claimed")
	// ErrNotClaimable is returned when the player never reached the rank.
	ErrNotClaimable = errors.New("reward not claimable")
)
