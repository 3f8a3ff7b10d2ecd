// Package hostdb is the durable store for hosting state: the world->port
// binding table and the deployment history.
package hostdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type Deployment struct {
	ID        string
	GameKey   string
	Engine    string
	Outcome   string
	Warning   string
	Duration  time.Duration
	CreatedAt time.Time
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS port_bindings (
			world_name TEXT PRIMARY KEY,
			port INTEGER NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deployments (
			deploy_id TEXT PRIMARY KEY,
			game_key TEXT NOT NULL,
			engine TEXT NOT NULL,
			outcome TEXT NOT NULL,
			warning TEXT,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_game ON deployments(game_key, created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PortBindings returns every recorded world->port binding. Bindings are
// never deleted, so ports stay reserved across world deletions and process
// restarts.
func (s *Store) PortBindings() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT world_name, port FROM port_bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var world string
		var port int
		if err := rows.Scan(&world, &port); err != nil {
			return nil, err
		}
		out[world] = port
	}
	return out, rows.Err()
}

func (s *Store) SavePortBinding(world string, port int) error {
	_, err := s.db.Exec(
		`INSERT INTO port_bindings(world_name, port, created_at) VALUES(?,?,?)
		 ON CONFLICT(world_name) DO NOTHING`,
		world, port, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) RecordDeployment(d Deployment) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO deployments(deploy_id, game_key, engine, outcome, warning, duration_ms, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		d.ID, d.GameKey, d.Engine, d.Outcome, d.Warning, d.Duration.Milliseconds(),
		createdAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) RecentDeployments(limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT deploy_id, game_key, engine, outcome, COALESCE(warning, ''), duration_ms, created_at
		 FROM deployments ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deployment
	for rows.Next() {
		var d Deployment
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&d.ID, &d.GameKey, &d.Engine, &d.Outcome, &d.Warning, &durationMS, &createdAt); err != nil {
			return nil, err
		}
		d.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			d.CreatedAt = ts
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
