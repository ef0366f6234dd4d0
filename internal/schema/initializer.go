package schema

import (
	"context"
	"fmt"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"github.com/jmoiron/sqlx"
)

// Initialize drops and recreates the schema inside one transaction. All
// previously loaded data is destroyed. Any failure rolls the reset back and
// is reported as SCHEMA:INIT_FAILED.
func Initialize(ctx context.Context, db *sqlx.DB) (retErr error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return cerrors.NewSchemaError("begin schema transaction", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range AllSchemaSQL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return cerrors.NewSchemaError(fmt.Sprintf("execute %q", firstLine(stmt)), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.NewSchemaError("commit schema transaction", err)
	}
	return nil
}

// Tables lists the tables that exist in db, sorted by name.
func Tables(ctx context.Context, db sqlx.QueryerContext) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, db, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	return names, nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
