package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrVectorExtensionMissing is returned when the pgvector extension is not
// installed and could not be created by the migrations.
var ErrVectorExtensionMissing = errors.New("pgvector extension is not installed")

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyMigrations runs the embedded migrations in file order and then makes
// sure the vector type is usable.
func ApplyMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range splitStatements(string(content)) {
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				if isCreateExtension(q) {
					return fmt.Errorf("execute query in %s: %w: %w", file, ErrVectorExtensionMissing, err)
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return checkVectorExtension(db)
}

func checkVectorExtension(db *sql.DB) error {
	var version string
	err := db.QueryRow("SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVectorExtensionMissing
	}
	if err != nil {
		return fmt.Errorf("check pgvector extension: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("pgvector extension ready", zap.String("version", version))
	return nil
}

// splitStatements cuts a migration file on ";" and drops "--" comment lines
// and empty statements.
func splitStatements(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, q := range strings.Split(strings.Join(lines, "\n"), ";") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func isCreateExtension(q string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.Join(strings.Fields(q), " ")), "CREATE EXTENSION")
}
