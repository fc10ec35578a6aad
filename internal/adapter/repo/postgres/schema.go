package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables the service reads and writes when they are missing.
// It is idempotent.
func Migrate(ctx context.Context, p PgxPool) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=postgres.migrate: %w", err)
	}
	return nil
}
