package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/metrics"
)

const driverRedis = "redis"

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisMaxRetries bounds how often a conflicting Update is replayed.
func WithRedisMaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRedisKeyPrefix namespaces every key.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// RedisStore keeps JSON documents under string keys. Update is optimistic:
// every key read is WATCHed and staged writes go out in one MULTI/EXEC.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// NewRedisStore connects to addr and pings it.
func NewRedisStore(ctx context.Context, addr string, db int, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{
		client:     redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix:     "raceledger",
		maxRetries: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, errors.Wrapf(err, "unable to reach redis at %s", addr)
	}
	return s, nil
}

func (s *RedisStore) profileKey(id string) string { return s.prefix + ":profile:" + id }
func (s *RedisStore) raceKey(id string) string    { return s.prefix + ":race:" + id }

// Update implements Store. fn is replayed from scratch when a watched key
// changes underneath it; after maxRetries conflicts ErrConflict is returned.
func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverRedis, "update", start)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		t := &redisTx{store: s, writes: make(map[string][]byte), writable: true}
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t.rtx = rtx
			if err := fn(t); err != nil {
				return err
			}
			if len(t.writes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for k, v := range t.writes {
					p.Set(ctx, k, v, 0)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			metrics.RecordStoreConflict(driverRedis)
			continue
		}
		return err
	}
	storeFailure(driverRedis, "conflict")
	return ErrConflict
}

// View implements Store.
func (s *RedisStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverRedis, "view", start)
	return fn(&redisTx{store: s})
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return errors.Wrap(s.client.Close(), "unable to close redis client")
}

type redisTx struct {
	store    *RedisStore
	rtx      *redis.Tx
	writes   map[string][]byte
	writable bool
}

func (t *redisTx) get(ctx context.Context, key string, v any) (bool, error) {
	raw, staged := t.writes[key]
	if !staged {
		var err error
		if t.rtx != nil {
			if err = t.rtx.Watch(ctx, key).Err(); err != nil {
				storeFailure(driverRedis, "watch")
				return false, errors.Wrapf(err, "unable to watch %s", key)
			}
			raw, err = t.rtx.Get(ctx, key).Bytes()
		} else {
			raw, err = t.store.client.Get(ctx, key).Bytes()
		}
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			storeFailure(driverRedis, "read")
			return false, errors.Wrapf(err, "unable to get %s", key)
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		storeFailure(driverRedis, "decode")
		return false, errors.Wrapf(err, "unable to unmarshal %s", key)
	}
	return true, nil
}

func (t *redisTx) put(key string, v any) error {
	if !t.writable {
		return ErrReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "unable to marshal %s", key)
	}
	t.writes[key] = raw
	return nil
}

func (t *redisTx) Profile(ctx context.Context, playerID string) (*model.Profile, error) {
	var p model.Profile
	ok, err := t.get(ctx, t.store.profileKey(playerID), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (t *redisTx) PutProfile(_ context.Context, p *model.Profile) error {
	return t.put(t.store.profileKey(p.PlayerID), p)
}

func (t *redisTx) Race(ctx context.Context, raceID string) (*model.RaceSession, error) {
	var s model.RaceSession
	ok, err := t.get(ctx, t.store.raceKey(raceID), &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRaceNotFound
	}
	return &s, nil
}

func (t *redisTx) CreateRace(ctx context.Context, s *model.RaceSession) error {
	if !t.writable {
		return ErrReadOnly
	}
	var existing model.RaceSession
	ok, err := t.get(ctx, t.store.raceKey(s.RaceID), &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrRaceExists
	}
	return t.put(t.store.raceKey(s.RaceID), s)
}

func (t *redisTx) PutRace(_ context.Context, s *model.RaceSession) error {
	return t.put(t.store.raceKey(s.RaceID), s)
}
