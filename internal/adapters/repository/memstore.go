package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/metrics"
)

const driverMemory = "memory"

// MemoryStore keeps everything in maps behind one mutex. Update stages writes
// in an overlay and swaps them in only when fn succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
	races    map[string]*model.RaceSession

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		profiles:              make(map[string]*model.Profile),
		races:                 make(map[string]*model.RaceSession),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverMemory, "update", start)

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		profiles: make(map[string]*model.Profile),
		races:    make(map[string]*model.RaceSession),
		writable: true,
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, p := range tx.profiles {
		s.profiles[id] = p
	}
	for id, r := range tx.races {
		s.races[id] = r
	}
	return nil
}

// View implements Store.
func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverMemory, "view", start)

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s})
}

// Close stops the metrics updater. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Counts reports how many profiles and races are stored.
func (s *MemoryStore) Counts() (profiles, races int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), len(s.races)
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	p, r := s.Counts()
	metrics.UpdateStoreRecords("profiles", p)
	metrics.UpdateStoreRecords("races", r)
}

// memTx reads through its overlay to the committed maps. The store lock is
// held by the caller for the whole transaction.
type memTx struct {
	store    *MemoryStore
	profiles map[string]*model.Profile
	races    map[string]*model.RaceSession
	writable bool
}

func (t *memTx) Profile(_ context.Context, playerID string) (*model.Profile, error) {
	if p, ok := t.profiles[playerID]; ok {
		return p.Clone(), nil
	}
	if p, ok := t.store.profiles[playerID]; ok {
		return p.Clone(), nil
	}
	return nil, ErrProfileNotFound
}

func (t *memTx) PutProfile(_ context.Context, p *model.Profile) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.profiles[p.PlayerID] = p.Clone()
	return nil
}

func (t *memTx) Race(_ context.Context, raceID string) (*model.RaceSession, error) {
	if r, ok := t.races[raceID]; ok {
		return r.Clone(), nil
	}
	if r, ok := t.store.races[raceID]; ok {
		return r.Clone(), nil
	}
	return nil, ErrRaceNotFound
}

func (t *memTx) CreateRace(ctx context.Context, s *model.RaceSession) error {
	if !t.writable {
		return ErrReadOnly
	}
	if _, err := t.Race(ctx, s.RaceID); err == nil {
		return ErrRaceExists
	}
	t.races[s.RaceID] = s.Clone()
	return nil
}

func (t *memTx) PutRace(_ context.Context, s *model.RaceSession) error {
	if !t.writable {
		return ErrReadOnly
	}
	t.races[s.RaceID] = s.Clone()
	return nil
}
