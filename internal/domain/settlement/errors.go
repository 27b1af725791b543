package settlement

import "errors"

var (
	// ErrAlreadySettled is returned by Finish for a race that already closed.
	ErrAlreadySettled = errors.New("race already settled")
	// ErrNotOwner is returned when a race belongs to another player.
	ErrNotOwner = errors.New("race belongs to another player")
	// ErrInFlight is returned while another Finish for the same race runs.
	ErrInFlight = errors.New("finish already in progress")
)
