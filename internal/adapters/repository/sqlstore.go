package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"

	"github.com/okian/raceledger/internal/domain/model"
)

// SQL driver names accepted by NewSQLStore.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var sqlSchema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS profiles (
			player_id TEXT PRIMARY KEY,
			trophy_level INTEGER NOT NULL DEFAULT 0,
			career_earning INTEGER NOT NULL DEFAULT 0,
			coins INTEGER NOT NULL DEFAULT 0,
			experience INTEGER NOT NULL DEFAULT 0,
			gems INTEGER NOT NULL DEFAULT 0,
			total_races INTEGER NOT NULL DEFAULT 0,
			inventory TEXT NOT NULL DEFAULT '{}',
			promotion_flags TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS races (
			race_id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			player_index INTEGER NOT NULL,
			lobby_ratings TEXT NOT NULL,
			pre_deducted_delta INTEGER NOT NULL,
			original_calculated_delta INTEGER NOT NULL,
			original_trophies INTEGER,
			settled BOOLEAN NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			settled_at TIMESTAMP
		)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS profiles (
			player_id TEXT PRIMARY KEY,
			trophy_level BIGINT NOT NULL DEFAULT 0,
			career_earning BIGINT NOT NULL DEFAULT 0,
			coins BIGINT NOT NULL DEFAULT 0,
			experience BIGINT NOT NULL DEFAULT 0,
			gems BIGINT NOT NULL DEFAULT 0,
			total_races BIGINT NOT NULL DEFAULT 0,
			inventory TEXT NOT NULL DEFAULT '{}',
			promotion_flags TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS races (
			race_id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL,
			player_index INTEGER NOT NULL,
			lobby_ratings TEXT NOT NULL,
			pre_deducted_delta BIGINT NOT NULL,
			original_calculated_delta BIGINT NOT NULL,
			original_trophies BIGINT,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMPTZ NOT NULL,
			settled_at TIMESTAMPTZ
		)`,
	},
}

const (
	upsertProfileSQL = `INSERT INTO profiles (player_id, trophy_level, career_earning, coins, experience, gems, total_races, inventory, promotion_flags, created_at, updated_at)
		VALUES (:player_id, :trophy_level, :career_earning, :coins, :experience, :gems, :total_races, :inventory, :promotion_flags, :created_at, :updated_at)
		ON CONFLICT (player_id) DO UPDATE SET
			trophy_level = excluded.trophy_level,
			career_earning = excluded.career_earning,
			coins = excluded.coins,
			experience = excluded.experience,
			gems = excluded.gems,
			total_races = excluded.total_races,
			inventory = excluded.inventory,
			promotion_flags = excluded.promotion_flags,
			updated_at = excluded.updated_at`
	insertRaceSQL = `INSERT INTO races (race_id, player_id, player_index, lobby_ratings, pre_deducted_delta, original_calculated_delta, original_trophies, settled, started_at, settled_at)
		VALUES (:race_id, :player_id, :player_index, :lobby_ratings, :pre_deducted_delta, :original_calculated_delta, :original_trophies, :settled, :started_at, :settled_at)
		ON CONFLICT (race_id) DO NOTHING`
	upsertRaceSQL = `INSERT INTO races (race_id, player_id, player_index, lobby_ratings, pre_deducted_delta, original_calculated_delta, original_trophies, settled, started_at, settled_at)
		VALUES (:race_id, :player_id, :player_index, :lobby_ratings, :pre_deducted_delta, :original_calculated_delta, :original_trophies, :settled, :started_at, :settled_at)
		ON CONFLICT (race_id) DO UPDATE SET
			pre_deducted_delta = excluded.pre_deducted_delta,
			original_calculated_delta = excluded.original_calculated_delta,
			original_trophies = excluded.original_trophies,
			settled = excluded.settled,
			settled_at = excluded.settled_at`
	selectProfileSQL = `SELECT player_id, trophy_level, career_earning, coins, experience, gems, total_races, inventory, promotion_flags, created_at, updated_at FROM profiles WHERE player_id = ?`
	selectRaceSQL    = `SELECT race_id, player_id, player_index, lobby_ratings, pre_deducted_delta, original_calculated_delta, original_trophies, settled, started_at, settled_at FROM races WHERE race_id = ?`
)

// SQLStore persists to sqlite or postgres through sqlx. Map and slice
// fields are stored as JSON text.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// NewSQLStore connects, applies the schema and returns the store. sqlite
// connections are pinned to one so the immediate-lock transactions
// serialize writers.
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	schema, ok := sqlSchema[driver]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "sql driver %q", driver)
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "_txlock=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", driver)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "unable to apply schema")
		}
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	start := time.Now()
	defer observe(s.driver, "update", start)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		storeFailure(s.driver, "begin")
		return errors.Wrap(err, "unable to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&sqlTx{tx: tx, driver: s.driver, writable: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		storeFailure(s.driver, "commit")
		return errors.Wrap(err, "unable to commit transaction")
	}
	return nil
}

// View implements Store.
func (s *SQLStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer observe(s.driver, "view", start)

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: s.driver == DriverPostgres})
	if err != nil {
		storeFailure(s.driver, "begin")
		return errors.Wrap(err, "unable to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{tx: tx, driver: s.driver})
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return errors.Wrap(s.db.Close(), "unable to close database")
}

type profileRow struct {
	PlayerID       string    `db:"player_id"`
	TrophyLevel    int       `db:"trophy_level"`
	CareerEarning  int       `db:"career_earning"`
	Coins          int       `db:"coins"`
	Experience     int       `db:"experience"`
	Gems           int       `db:"gems"`
	TotalRaces     int       `db:"total_races"`
	Inventory      string    `db:"inventory"`
	PromotionFlags string    `db:"promotion_flags"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type raceRow struct {
	RaceID                  string        `db:"race_id"`
	PlayerID                string        `db:"player_id"`
	PlayerIndex             int           `db:"player_index"`
	LobbyRatings            string        `db:"lobby_ratings"`
	PreDeductedDelta        int           `db:"pre_deducted_delta"`
	OriginalCalculatedDelta int           `db:"original_calculated_delta"`
	OriginalTrophies        sql.NullInt64 `db:"original_trophies"`
	Settled                 bool          `db:"settled"`
	StartedAt               time.Time     `db:"started_at"`
	SettledAt               sql.NullTime  `db:"settled_at"`
}

func toProfileRow(p *model.Profile) (profileRow, error) {
	inv, err := json.Marshal(nonNilInventory(p.Inventory))
	if err != nil {
		return profileRow{}, errors.Wrap(err, "unable to marshal inventory")
	}
	flags, err := json.Marshal(nonNilFlags(p.PromotionFlags))
	if err != nil {
		return profileRow{}, errors.Wrap(err, "unable to marshal promotion flags")
	}
	return profileRow{
		PlayerID:       p.PlayerID,
		TrophyLevel:    p.TrophyLevel,
		CareerEarning:  p.CareerEarning,
		Coins:          p.Coins,
		Experience:     p.Experience,
		Gems:           p.Gems,
		TotalRaces:     p.TotalRaces,
		Inventory:      string(inv),
		PromotionFlags: string(flags),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}, nil
}

func (r profileRow) toModel() (*model.Profile, error) {
	p := &model.Profile{
		PlayerID:      r.PlayerID,
		TrophyLevel:   r.TrophyLevel,
		CareerEarning: r.CareerEarning,
		Coins:         r.Coins,
		Experience:    r.Experience,
		Gems:          r.Gems,
		TotalRaces:    r.TotalRaces,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Inventory), &p.Inventory); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal inventory")
	}
	if err := json.Unmarshal([]byte(r.PromotionFlags), &p.PromotionFlags); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal promotion flags")
	}
	return p, nil
}

func toRaceRow(s *model.RaceSession) (raceRow, error) {
	ratings, err := json.Marshal(s.Ratings)
	if err != nil {
		return raceRow{}, errors.Wrap(err, "unable to marshal lobby ratings")
	}
	row := raceRow{
		RaceID:                  s.RaceID,
		PlayerID:                s.PlayerID,
		PlayerIndex:             s.PlayerIndex,
		LobbyRatings:            string(ratings),
		PreDeductedDelta:        s.PreDeductedDelta,
		OriginalCalculatedDelta: s.OriginalCalculatedDelta,
		Settled:                 s.Settled,
		StartedAt:               s.StartedAt.UTC(),
	}
	if s.OriginalTrophies != nil {
		row.OriginalTrophies = sql.NullInt64{Int64: int64(*s.OriginalTrophies), Valid: true}
	}
	if s.SettledAt != nil {
		row.SettledAt = sql.NullTime{Time: s.SettledAt.UTC(), Valid: true}
	}
	return row, nil
}

func (r raceRow) toModel() (*model.RaceSession, error) {
	s := &model.RaceSession{
		RaceID:                  r.RaceID,
		PlayerID:                r.PlayerID,
		PlayerIndex:             r.PlayerIndex,
		PreDeductedDelta:        r.PreDeductedDelta,
		OriginalCalculatedDelta: r.OriginalCalculatedDelta,
		Settled:                 r.Settled,
		StartedAt:               r.StartedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.LobbyRatings), &s.Ratings); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal lobby ratings")
	}
	if r.OriginalTrophies.Valid {
		v := int(r.OriginalTrophies.Int64)
		s.OriginalTrophies = &v
	}
	if r.SettledAt.Valid {
		v := r.SettledAt.Time.UTC()
		s.SettledAt = &v
	}
	return s, nil
}

func nonNilInventory(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilFlags(m map[string]model.FlagState) map[string]model.FlagState {
	if m == nil {
		return map[string]model.FlagState{}
	}
	return m
}

type sqlTx struct {
	tx       *sqlx.Tx
	driver   string
	writable bool
}

// lockClause makes reads inside Update hold row locks on postgres. sqlite
// already holds the database write lock.
func (t *sqlTx) lockClause() string {
	if t.writable && t.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (t *sqlTx) Profile(ctx context.Context, playerID string) (*model.Profile, error) {
	var row profileRow
	err := t.tx.GetContext(ctx, &row, t.tx.Rebind(selectProfileSQL+t.lockClause()), playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		storeFailure(t.driver, "read")
		return nil, errors.Wrap(err, "unable to get profile")
	}
	return row.toModel()
}

func (t *sqlTx) PutProfile(ctx context.Context, p *model.Profile) error {
	if !t.writable {
		return ErrReadOnly
	}
	row, err := toProfileRow(p)
	if err != nil {
		return err
	}
	if _, err := t.tx.NamedExecContext(ctx, upsertProfileSQL, &row); err != nil {
		storeFailure(t.driver, "write")
		return errors.Wrap(err, "unable to save profile")
	}
	return nil
}

func (t *sqlTx) Race(ctx context.Context, raceID string) (*model.RaceSession, error) {
	var row raceRow
	err := t.tx.GetContext(ctx, &row, t.tx.Rebind(selectRaceSQL+t.lockClause()), raceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		storeFailure(t.driver, "read")
		return nil, errors.Wrap(err, "unable to get race")
	}
	return row.toModel()
}

func (t *sqlTx) CreateRace(ctx context.Context, s *model.RaceSession) error {
	if !t.writable {
		return ErrReadOnly
	}
	row, err := toRaceRow(s)
	if err != nil {
		return err
	}
	res, err := t.tx.NamedExecContext(ctx, insertRaceSQL, &row)
	if err != nil {
		storeFailure(t.driver, "write")
		return errors.Wrap(err, "unable to create race")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "unable to create race")
	}
	if n == 0 {
		return ErrRaceExists
	}
	return nil
}

func (t *sqlTx) PutRace(ctx context.Context, s *model.RaceSession) error {
	if !t.writable {
		return ErrReadOnly
	}
	row, err := toRaceRow(s)
	if err != nil {
		return err
	}
	if _, err := t.tx.NamedExecContext(ctx, upsertRaceSQL, &row); err != nil {
		storeFailure(t.driver, "write")
		return errors.Wrap(err, "unable to save race")
	}
	return nil
}
