package rating

import (
	"errors"
	"fmt"
	"math"
)

// Validation failures. Engine methods wrap these as InvalidArgument.
var (
	ErrTooFewRacers      = errors.New("lobby needs at least two racers")
	ErrIndexOutOfRange   = errors.New("player index out of range")
	ErrBadRating         = errors.New("rating must be a finite number")
	ErrBadFinishOrder    = errors.New("finish order is not a permutation of the lobby")
	ErrPlayerNotFinished = errors.New("player missing from finish order")
)

// ValidateLobby checks a rating vector and the index into it.
func ValidateLobby(playerIndex int, ratings []float64) error {
	if len(ratings) < 2 {
		return ErrTooFewRacers
	}
	if playerIndex < 0 || playerIndex >= len(ratings) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, playerIndex, len(ratings))
	}
	for i, r := range ratings {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: slot %d", ErrBadRating, i)
		}
	}
	return nil
}

// ValidateFinishOrder checks that order is a permutation of 0..n-1.
func ValidateFinishOrder(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: %d entries for %d racers", ErrBadFinishOrder, len(order), n)
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: index %d out of range", ErrBadFinishOrder, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d repeated", ErrBadFinishOrder, idx)
		}
		seen[idx] = true
	}
	return nil
}

func positionOf(playerIndex int, order []int, n int) (int, error) {
	if err := ValidateFinishOrder(order, n); err != nil {
		return 0, err
	}
	for pos, idx := range order {
		if idx == playerIndex {
			return pos, nil
		}
	}
	return 0, ErrPlayerNotFinished
}
