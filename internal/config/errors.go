package config

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

func invalid(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidConfig, msg) }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func wrapInvalid(err error) error { return fmt.Errorf("%w: %w", ErrInvalidConfig, err) }

func wrapLoad(err error) error { return fmt.Errorf("%w: %w", ErrLoadConfig, err) }
