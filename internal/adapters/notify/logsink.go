package notify

import (
	"context"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/logger"
)

// LogSink writes one debug line per notification.
type LogSink struct{ logger logger.Logger }

// NewLogSink returns a sink that logs through l.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Nop()
	}
	return &LogSink{logger: l.Named("notifications")}
}

// Name implements worker.Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements worker.Sink.
func (s *LogSink) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	s.logger.Debug(ctx, "notification",
		logger.String("id", n.ID),
		logger.String("kind", string(n.Kind)),
		logger.String("player_id", n.PlayerID),
		logger.String("race_id", n.RaceID),
	)
	return nil
}
