package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"retail-order-service/internal/util"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded .sql files in name order, once each,
// recording them in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	logger := util.GetLogger()

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied bool
		if err := s.db.GetContext(ctx, &applied,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", file); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", file, err)
		}
		if applied {
			logger.Debug("Skipping applied migration", zap.String("file", file))
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		logger.Info("Applying migration", zap.String("file", file))
		err = s.InTx(ctx, func(tx Repository) error {
			q := tx.(*Store).q
			if _, err := q.ExecContext(ctx, string(content)); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", file)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	return nil
}
