package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
)

//go:embed schema.sql
var schemaDDL string

// EnsureSchema applies the DDL. Statements are idempotent, so running it on
// every startup is safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("%w: apply schema: %v", interfaces.ErrStorage, err)
	}
	return nil
}
