// Package persistence provides SQLite-based storage of simulation runs and a
// compressed JSONL archive of per-tick records.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/config"
	"github.com/talgya/civil-violence/internal/engine"
)

const schemaVersion = "1"

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Run is one stored simulation run.
type Run struct {
	ID         string        `db:"id" json:"id"`
	CreatedAt  string        `db:"created_at" json:"created_at"`
	FinishedAt string        `db:"finished_at" json:"finished_at,omitempty"`
	Seed       int64         `db:"seed" json:"seed"`
	Ticks      uint64        `db:"ticks" json:"ticks"`
	ConfigJSON string        `db:"config_json" json:"-"`
	Config     config.Config `db:"-" json:"config"`
}

// Outbreak is one stored detector result.
type Outbreak struct {
	Threshold int `db:"threshold" json:"threshold"`
	Index     int `db:"idx" json:"index"`
	Peak      int `db:"peak" json:"peak"`
	Width     int `db:"width" json:"width"`
}

type tickRow struct {
	Tick        uint64  `db:"tick"`
	Quiescent   int     `db:"quiescent"`
	Active      int     `db:"active"`
	Jailed      int     `db:"jailed"`
	Legitimacy  float64 `db:"legitimacy"`
	Influencers int     `db:"influencers"`
	GraphNodes  int     `db:"graph_nodes"`
}

type snapshotRow struct {
	AgentID  uint64 `db:"agent_id"`
	State    string `db:"state"`
	X        int    `db:"x"`
	Y        int    `db:"y"`
	JailTerm int    `db:"jail_term"`
}

type eventRow struct {
	Seq         uint64 `db:"seq"`
	Tick        uint64 `db:"tick"`
	Category    string `db:"category"`
	AgentID     uint64 `db:"agent_id"`
	Description string `db:"description"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	// modernc sqlite applies pragmas per connection from _pragma parameters.
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids busy errors.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL,
		ticks INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		quiescent INTEGER NOT NULL,
		active INTEGER NOT NULL,
		jailed INTEGER NOT NULL,
		legitimacy REAL NOT NULL,
		influencers INTEGER NOT NULL,
		graph_nodes INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS agent_snapshots (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		state TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		jail_term INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick, agent_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		category TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbreaks (
		run_id TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		peak INTEGER NOT NULL,
		width INTEGER NOT NULL,
		PRIMARY KEY (run_id, threshold, idx)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	stored, err := db.GetMeta("schema_version")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	case stored != schemaVersion:
		return fmt.Errorf("store has schema version %s, this build reads %s", stored, schemaVersion)
	}
	return db.SaveMeta("schema_version", schemaVersion)
}

// CreateRun registers a new run for cfg and returns its ID.
func (db *DB) CreateRun(cfg config.Config) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, created_at, seed, config_json) VALUES (?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), cfg.Seed, string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Debug("run created", "run", id, "seed", cfg.Seed)
	return id, nil
}

// SaveTick stores one tick record and its agent snapshots, if any.
func (db *DB) SaveTick(runID string, rec engine.TickRecord) error {
	return db.SaveTicks(runID, []engine.TickRecord{rec})
}

// SaveTicks stores tick records in one transaction.
func (db *DB) SaveTicks(runID string, recs []engine.TickRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	snap, err := tx.Preparex(`INSERT OR REPLACE INTO agent_snapshots
		(run_id, tick, agent_id, state, x, y, jail_term)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snap.Close()

	for _, rec := range recs {
		_, err := tx.Exec(`INSERT OR REPLACE INTO ticks
			(run_id, tick, quiescent, active, jailed, legitimacy, influencers, graph_nodes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, rec.Tick, rec.Quiescent, rec.Active, rec.Jailed,
			rec.Legitimacy, rec.Influencers, rec.GraphNodes,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", rec.Tick, err)
		}
		for _, a := range rec.Agents {
			if _, err := snap.Exec(runID, rec.Tick, uint64(a.ID), a.State.String(), a.X, a.Y, a.JailTerm); err != nil {
				return fmt.Errorf("insert snapshot %d@%d: %w", a.ID, rec.Tick, err)
			}
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, seq, tick, category, agent_id, description) VALUES (?, ?, ?, ?, ?, ?)",
			runID, e.Seq, e.Tick, e.Category, uint64(e.AgentID), e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FinishRun marks a run complete after ticks iterations.
func (db *DB) FinishRun(runID string, ticks uint64) error {
	res, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, ticks = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, runID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// GetRun returns one run with its decoded configuration.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, created_at, finished_at, seed, ticks, config_json FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(r.ConfigJSON), &r.Config); err != nil {
		return Run{}, fmt.Errorf("decode config of run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, created_at, finished_at, seed, ticks, config_json FROM runs ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if err := json.Unmarshal([]byte(runs[i].ConfigJSON), &runs[i].Config); err != nil {
			return nil, fmt.Errorf("decode config of run %s: %w", runs[i].ID, err)
		}
	}
	return runs, nil
}

// LoadSeries returns the tick records of a run in tick order, without
// agent snapshots.
func (db *DB) LoadSeries(runID string) ([]engine.TickRecord, error) {
	var rows []tickRow
	err := db.conn.Select(&rows, `SELECT tick, quiescent, active, jailed, legitimacy, influencers, graph_nodes
		FROM ticks WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.TickRecord, len(rows))
	for i, r := range rows {
		out[i] = engine.TickRecord{
			Tick:        r.Tick,
			Quiescent:   r.Quiescent,
			Active:      r.Active,
			Jailed:      r.Jailed,
			Legitimacy:  r.Legitimacy,
			Influencers: r.Influencers,
			GraphNodes:  r.GraphNodes,
		}
	}
	return out, nil
}

// LoadSnapshots returns the agent snapshots of one tick, by agent ID.
func (db *DB) LoadSnapshots(runID string, tick uint64) ([]engine.AgentSnapshot, error) {
	var rows []snapshotRow
	err := db.conn.Select(&rows, `SELECT agent_id, state, x, y, jail_term
		FROM agent_snapshots WHERE run_id = ? AND tick = ? ORDER BY agent_id`, runID, tick)
	if err != nil {
		return nil, err
	}
	out := make([]engine.AgentSnapshot, len(rows))
	for i, r := range rows {
		var st agents.State
		if err := st.UnmarshalText([]byte(r.State)); err != nil {
			return nil, fmt.Errorf("agent %d: %w", r.AgentID, err)
		}
		out[i] = engine.AgentSnapshot{
			ID:       agents.AgentID(r.AgentID),
			State:    st,
			X:        r.X,
			Y:        r.Y,
			JailTerm: r.JailTerm,
		}
	}
	return out, nil
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT seq, tick, category, agent_id, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = engine.Event{
			Seq:         r.Seq,
			Tick:        r.Tick,
			Category:    r.Category,
			AgentID:     agents.AgentID(r.AgentID),
			Description: r.Description,
		}
	}
	return out, nil
}

// SaveOutbreaks replaces the detector results of a run at threshold.
func (db *DB) SaveOutbreaks(runID string, threshold int, peaks, widths []int) error {
	if len(peaks) != len(widths) {
		return fmt.Errorf("outbreaks: %d peaks but %d widths", len(peaks), len(widths))
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM outbreaks WHERE run_id = ? AND threshold = ?", runID, threshold); err != nil {
		return err
	}
	for i := range peaks {
		_, err := tx.Exec(
			"INSERT INTO outbreaks (run_id, threshold, idx, peak, width) VALUES (?, ?, ?, ?, ?)",
			runID, threshold, i, peaks[i], widths[i],
		)
		if err != nil {
			return fmt.Errorf("insert outbreak %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadOutbreaks returns stored detector results of a run at threshold.
func (db *DB) LoadOutbreaks(runID string, threshold int) ([]Outbreak, error) {
	var out []Outbreak
	err := db.conn.Select(&out,
		"SELECT threshold, idx, peak, width FROM outbreaks WHERE run_id = ? AND threshold = ? ORDER BY idx",
		runID, threshold,
	)
	return out, err
}

// SaveMeta stores a key-value pair in store metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
