package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "hosting data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/hostd.db)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "ports"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "hostd.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "ports":
		queryPorts(db)
	case "deployments":
		queryDeployments(db, *limit)
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (ports, deployments)\n", q)
		os.Exit(2)
	}
}

func queryPorts(db *sql.DB) {
	rows, err := db.Query(`SELECT world_name, port, created_at FROM port_bindings ORDER BY port`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	enc := json.NewEncoder(os.Stdout)
	for rows.Next() {
		var world, createdAt string
		var port int
		if err := rows.Scan(&world, &port, &createdAt); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		_ = enc.Encode(map[string]any{"world_name": world, "port": port, "created_at": createdAt})
	}
}

func queryDeployments(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT deploy_id, game_key, engine, outcome, COALESCE(warning, ''), duration_ms, created_at
		FROM deployments ORDER BY created_at DESC, deploy_id LIMIT ?`, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	enc := json.NewEncoder(os.Stdout)
	for rows.Next() {
		var id, key, engine, outcome, warning, createdAt string
		var durationMS int64
		if err := rows.Scan(&id, &key, &engine, &outcome, &warning, &durationMS, &createdAt); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		_ = enc.Encode(map[string]any{
			"deploy_id": id, "game_key": key, "engine": engine,
			"outcome": outcome, "warning": warning,
			"duration_ms": durationMS, "created_at": createdAt,
		})
	}
}
