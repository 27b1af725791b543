package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/okian/raceledger/internal/domain/model"
)

const driverBolt = "bolt"

var (
	bucketProfiles = []byte("profiles")
	bucketRaces    = []byte("races")
)

// BoltStore keeps JSON documents in two buckets of a single bolt file.
// bolt serializes writers, so Update never conflicts.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProfiles, bucketRaces} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "unable to create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Update implements Store.
func (b *BoltStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverBolt, "update", start)

	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

// View implements Store.
func (b *BoltStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(driverBolt, "view", start)

	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return errors.Wrap(b.db.Close(), "unable to close database")
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) get(bucket []byte, key string, v any) (bool, error) {
	raw := t.tx.Bucket(bucket).Get([]byte(key))
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		storeFailure(driverBolt, "decode")
		return false, errors.Wrapf(err, "unable to unmarshal %s/%s", bucket, key)
	}
	return true, nil
}

func (t *boltTx) put(bucket []byte, key string, v any) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "unable to marshal %s/%s", bucket, key)
	}
	if err := t.tx.Bucket(bucket).Put([]byte(key), raw); err != nil {
		storeFailure(driverBolt, "write")
		return errors.Wrapf(err, "unable to write %s/%s", bucket, key)
	}
	return nil
}

func (t *boltTx) Profile(_ context.Context, playerID string) (*model.Profile, error) {
	var p model.Profile
	ok, err := t.get(bucketProfiles, playerID, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (t *boltTx) PutProfile(_ context.Context, p *model.Profile) error {
	return t.put(bucketProfiles, p.PlayerID, p)
}

func (t *boltTx) Race(_ context.Context, raceID string) (*model.RaceSession, error) {
	var s model.RaceSession
	ok, err := t.get(bucketRaces, raceID, &s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRaceNotFound
	}
	return &s, nil
}

func (t *boltTx) CreateRace(_ context.Context, s *model.RaceSession) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	if t.tx.Bucket(bucketRaces).Get([]byte(s.RaceID)) != nil {
		return ErrRaceExists
	}
	return t.put(bucketRaces, s.RaceID, s)
}

func (t *boltTx) PutRace(_ context.Context, s *model.RaceSession) error {
	return t.put(bucketRaces, s.RaceID, s)
}
