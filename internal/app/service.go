// Package service wires storage, the settlement domain and notification
// delivery into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/raceledger/internal/adapters/http/api"
	"github.com/okian/raceledger/internal/adapters/http/auth"
	"github.com/okian/raceledger/internal/adapters/mq/queue"
	"github.com/okian/raceledger/internal/adapters/mq/worker"
	"github.com/okian/raceledger/internal/adapters/notify"
	"github.com/okian/raceledger/internal/adapters/repository"
	"github.com/okian/raceledger/internal/config"
	"github.com/okian/raceledger/internal/domain/dedupe"
	"github.com/okian/raceledger/internal/domain/player"
	"github.com/okian/raceledger/internal/domain/promotion"
	"github.com/okian/raceledger/internal/domain/rank"
	"github.com/okian/raceledger/internal/domain/rating"
	"github.com/okian/raceledger/internal/domain/reward"
	"github.com/okian/raceledger/internal/domain/settlement"
	"github.com/okian/raceledger/pkg/logger"
)

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config
	now func() time.Time

	store      repository.Store
	ownsStore  bool
	ranks      *rank.Table
	rewards    *reward.Calculator
	ledger     *promotion.Ledger
	races      *settlement.Controller
	players    *player.Service
	inflight   dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	hub        *notify.Hub
	auth       *auth.Authenticator
	extraSinks []worker.Sink

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a store instead of opening one from config. The caller
// keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSinks adds notification sinks next to the built-in ones.
func WithSinks(sinks ...worker.Sink) Option {
	return func(s *Service) {
		s.extraSinks = append(s.extraSinks, sinks...)
	}
}

// New constructs a Service. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg, now: time.Now, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting race ledger service...")

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.cfg.StoreConfig())
		if err != nil {
			return err
		}
		s.store = store
		s.ownsStore = true
	}

	s.ranks = rank.Default()
	engine, err := rating.New(s.cfg.Rating)
	if err != nil {
		return s.abortStart(err)
	}
	s.rewards, err = reward.New(s.cfg.Reward, s.ranks, engine)
	if err != nil {
		return s.abortStart(err)
	}

	sinks := []worker.Sink{}
	s.hub = notify.NewHub(s.logger)
	sinks = append(sinks, s.hub, notify.NewLogSink(s.logger))
	if s.cfg.AuditLogPath != "" {
		audit, err := notify.NewAuditLog(s.cfg.AuditLogPath)
		if err != nil {
			return s.abortStart(err)
		}
		sinks = append(sinks, audit)
	}
	sinks = append(sinks, s.extraSinks...)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.NotifyQueueSize))
	s.pool = worker.NewPool(s.cfg.NotifyWorkers, s.queue, sinks, worker.WithPoolLogger(s.logger))
	// workers outlive the start context and stop in Stop
	s.pool.Start(context.WithoutCancel(ctx))

	s.ledger = promotion.NewLedger(s.store, promotion.DefaultCatalog(),
		promotion.WithPublisher(s.queue),
		promotion.WithLogger(s.logger),
		promotion.WithClock(s.now),
	)
	s.inflight = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.InflightGuardSize))
	s.races, err = settlement.New(s.store, s.ranks, engine, s.rewards, s.ledger,
		settlement.WithInFlightGuard(s.inflight),
		settlement.WithPublisher(s.queue),
		settlement.WithLogger(s.logger),
		settlement.WithClock(s.now),
	)
	if err != nil {
		return s.abortStart(err)
	}
	s.players = player.NewService(s.store, s.ranks, s.now)
	s.auth = auth.New(s.cfg.JWTSecret,
		auth.WithIssuer(s.cfg.JWTIssuer),
		auth.WithAnonymous(s.cfg.AllowAnonymous),
		auth.WithTokenTTL(s.cfg.JWTTTL),
		auth.WithClock(s.now),
	)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "race ledger service started",
		logger.String("store", s.storeDriver()),
		logger.Int("notify_workers", s.pool.Size()),
		logger.Int("notify_queue_size", s.cfg.NotifyQueueSize),
		logger.Bool("allow_anonymous", s.cfg.AllowAnonymous),
	)
	return nil
}

func (s *Service) abortStart(err error) error {
	if s.pool != nil {
		_ = s.pool.Shutdown(context.Background())
		s.pool = nil
	}
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
	return err
}

// Stop drains pending notifications and closes what the service opened.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping race ledger service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.hub.Close()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "race ledger service stopped")
	return errors.Join(errs...)
}

// Dependencies returns the handler bundle for api.NewServer.
func (s *Service) Dependencies() (api.Dependencies, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return api.Dependencies{}, ErrNotStarted
	}
	return api.Dependencies{
		Races:       s.races,
		Rewards:     s.ledger,
		Profiles:    s.players,
		Ranks:       s.ranks,
		RankRewards: s.rewards,
		Auth:        s.auth,
		Notifier:    s.hub,
		Stats:       s,
		Logger:      s.logger,

		AllowedOrigins: s.cfg.WSAllowedOrigins,
	}, nil
}

// Races exposes the settlement controller.
func (s *Service) Races() *settlement.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.races
}

// Ledger exposes the promotion reward ledger.
func (s *Service) Ledger() *promotion.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// Players exposes the profile service.
func (s *Service) Players() *player.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players
}

// Auth exposes the token authenticator.
func (s *Service) Auth() *auth.Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"store_driver":      s.storeDriver(),
		"notify_queue_size": s.cfg.NotifyQueueSize,
	}
	if !s.started {
		return stats
	}

	stats["uptime_seconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["notify_queue_length"] = s.queue.Len(context.Background())
	stats["notify_workers"] = s.pool.Size()
	stats["websocket_clients"] = s.hub.Clients()
	stats["races_in_flight"] = s.inflight.Size()
	if ms, ok := s.store.(*repository.MemoryStore); ok {
		profiles, races := ms.Counts()
		stats["profiles"] = profiles
		stats["races"] = races
	}
	return stats
}

func (s *Service) storeDriver() string {
	if s.cfg.StoreDriver == "" {
		return config.DriverMemory
	}
	return s.cfg.StoreDriver
}
