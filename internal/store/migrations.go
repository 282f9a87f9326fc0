package store

import (
	"context"
	"database/sql"
	"embed"
	"sort"
	"strconv"
	"strings"

	"github.com/rsundqvist/prefect/pkg/schema"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// A migration's version and name come from its file name:
// migrations/001_initial_schema.sql is version 1, "initial_schema".
type migration struct {
	version int
	name    string
	script  string
}

// loadMigrations reads the embedded migration scripts, sorted by version.
func loadMigrations() ([]migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "read migration scripts").WithCause(err)
	}

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		base := strings.TrimSuffix(e.Name(), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"migration file %q is not named <version>_<name>.sql", e.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"migration file %q has a non-numeric version", e.Name()).WithCause(err)
		}
		script, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"read migration %q", e.Name()).WithCause(err)
		}
		out = append(out, migration{version: version, name: name, script: string(script)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// runMigrations applies every migration script not yet recorded in
// schema_version. Each script runs in its own transaction.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return schema.NewError(schema.ErrCodeStore, "create schema_version table").WithCause(err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "read schema_version").WithCause(err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return schema.NewError(schema.ErrCodeStore, "scan schema_version").WithCause(err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return schema.NewError(schema.ErrCodeStore, "read schema_version").WithCause(err)
	}
	rows.Close()

	pending, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin migration %03d", m.version).WithCause(err)
	}
	defer tx.Rollback()

	for _, stmt := range sqlStatements(m.script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore,
				"apply migration %03d_%s", m.version, m.name).WithCause(err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "record migration %03d", m.version).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit migration %03d", m.version).WithCause(err)
	}
	return nil
}

// sqlStatements splits a script into statements. Comment-only and blank
// lines are dropped; a statement ends at a line whose last character is a
// semicolon. Nothing in the scripts nests semicolons mid-line.
func sqlStatements(script string) []string {
	var stmts []string
	var buf strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
