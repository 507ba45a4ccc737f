package migrations

import (
	"context"
	"fmt"

	"github.com/therealtplum/watch-heat/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded postgres DDL in lexical order.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, file := range files {
		if _, err := pool.Exec(ctx, file.sql); err != nil {
			return fmt.Errorf("apply %s: %w", file.name, err)
		}
	}
	return nil
}
