package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a staged bulk merge into one table. Rows are COPYed
// into a temporary table and folded into the target with INSERT ... ON
// CONFLICT, so repeating a merge refreshes rows instead of duplicating
// them.
type Upsert struct {
	Table   string   // target table, a bare identifier
	Columns []string // every column present in the rows
	Keys    []string // unique-constraint columns the merge conflicts on
	Update  []string // columns refreshed on conflict; empty means all non-key columns
}

// Apply stages rows through a temp table and merges them into u.Table,
// returning the number of rows the merge wrote.
func (u Upsert) Apply(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 {
		return 0, eris.Errorf("db: upsert %s: no columns", u.Table)
	}
	if len(u.Keys) == 0 {
		return 0, eris.Errorf("db: upsert %s: no conflict keys", u.Table)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin", u.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The stage table copies the target's shape and is dropped with the
	// transaction.
	stage := u.Table + "_stage"
	_, err = tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		ident(stage), ident(u.Table),
	))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: stage table", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: copy", u.Table)
	}

	tag, err := tx.Exec(ctx, u.mergeSQL(stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", u.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit", u.Table)
	}
	return tag.RowsAffected(), nil
}

// mergeSQL builds the INSERT ... ON CONFLICT statement that folds the
// stage table into the target. With nothing to refresh it degrades to
// DO NOTHING.
func (u Upsert) mergeSQL(stage string) string {
	cols := identList(u.Columns)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		ident(u.Table), cols, cols, ident(stage), identList(u.Keys))

	update := u.updateColumns()
	if len(update) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	b.WriteString(" DO UPDATE SET ")
	for i, col := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", ident(col), ident(col))
	}
	return b.String()
}

// updateColumns resolves the refresh set: an explicit Update list wins,
// otherwise every column outside the conflict keys.
func (u Upsert) updateColumns() []string {
	if len(u.Update) > 0 {
		return u.Update
	}
	keys := make(map[string]bool, len(u.Keys))
	for _, k := range u.Keys {
		keys[k] = true
	}
	var cols []string
	for _, c := range u.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}
