package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/authz"
	"github.com/fieldserve/fieldserve/internal/platform/db"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Record is one row of a generic entity, keyed by column name.
type Record map[string]any

// Store is the data-access port the handlers talk to. The predicate
// arguments arrive fully composed (WHERE keyword included when
// non-empty) with placeholders numbered from $1; implementations only
// renumber when they prepend their own parameters.
type Store interface {
	List(ctx context.Context, meta Metadata, where string, values []any, orderBy string, limit, offset int) ([]Record, int, error)
	Get(ctx context.Context, meta Metadata, where string, values []any) (Record, error)
	Create(ctx context.Context, meta Metadata, fields map[string]any) (Record, error)
	Update(ctx context.Context, meta Metadata, fields map[string]any, where string, values []any) (Record, error)
	Delete(ctx context.Context, meta Metadata, where string, values []any) (bool, error)
}

// Repository provides PostgreSQL backed persistence for every
// registered entity.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) selectColumns(meta Metadata) string {
	return strings.Join(prefixed(meta), ", ")
}

// List executes the composed predicate and returns the page of rows plus
// the unpaginated total. Count and page run in one transaction so they
// see the same snapshot.
func (r *Repository) List(ctx context.Context, meta Metadata, where string, values []any, orderBy string, limit, offset int) ([]Record, int, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s AS %s %s", meta.Table, meta.Alias, where)

	limitClause, pageValues := Limit(len(values), limit, offset)
	query := fmt.Sprintf("SELECT %s FROM %s AS %s %s %s %s",
		r.selectColumns(meta), meta.Table, meta.Alias, where, orderBy, limitClause)
	args := append(append([]any{}, values...), pageValues...)

	var (
		total   int
		records []Record
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, countQuery, values...).Scan(&total); err != nil {
			return fmt.Errorf("entity: count %s: %w", meta.Name, err)
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("entity: list %s: %w", meta.Name, err)
		}
		defer rows.Close()
		records, err = scanRecords(meta, rows)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Get returns a single row matching the composed predicate. A row hidden
// by row-level security and a row that does not exist are deliberately
// the same ErrNotFound.
func (r *Repository) Get(ctx context.Context, meta Metadata, where string, values []any) (Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s AS %s %s",
		r.selectColumns(meta), meta.Table, meta.Alias, where)
	rows, err := r.pool.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("entity: get %s: %w", meta.Name, err)
	}
	defer rows.Close()

	records, err := scanRecords(meta, rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.ErrNotFound
	}
	return records[0], nil
}

// Create inserts the given fields and returns the stored row.
func (r *Repository) Create(ctx context.Context, meta Metadata, fields map[string]any) (Record, error) {
	columns := make([]string, 0, len(fields))
	placeholders := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	// Iterate the metadata column order for deterministic SQL.
	for _, column := range meta.Columns {
		value, ok := fields[column]
		if !ok {
			continue
		}
		columns = append(columns, column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, value)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("entity: create %s: %w", meta.Name, httpx.ErrValidation)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		meta.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		strings.Join(meta.Columns, ", "))

	record, err := r.queryOne(ctx, meta, query, args)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, httpx.ErrDuplicate
		}
		return nil, fmt.Errorf("entity: create %s: %w", meta.Name, err)
	}
	return record, nil
}

// Update applies the field changes to the row matched by the composed
// predicate. The predicate's placeholders are shifted past the SET list.
func (r *Repository) Update(ctx context.Context, meta Metadata, fields map[string]any, where string, values []any) (Record, error) {
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+len(values))
	for _, column := range meta.Columns {
		value, ok := fields[column]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("entity: update %s: %w", meta.Name, httpx.ErrValidation)
	}
	sets = append(sets, "updated_at = NOW()")

	shifted, err := authz.ShiftPlaceholders(where, len(args))
	if err != nil {
		return nil, fmt.Errorf("entity: update %s: %w", meta.Name, err)
	}
	args = append(args, values...)

	query := fmt.Sprintf("UPDATE %s AS %s SET %s %s RETURNING %s",
		meta.Table, meta.Alias, strings.Join(sets, ", "), shifted,
		strings.Join(prefixed(meta), ", "))

	record, err := r.queryOne(ctx, meta, query, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, httpx.ErrDuplicate
		}
		return nil, fmt.Errorf("entity: update %s: %w", meta.Name, err)
	}
	return record, nil
}

// Delete removes the row matched by the composed predicate and reports
// whether anything was deleted. False covers both a missing row and a
// row the caller may not touch.
func (r *Repository) Delete(ctx context.Context, meta Metadata, where string, values []any) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s AS %s %s", meta.Table, meta.Alias, where)
	tag, err := r.pool.Exec(ctx, query, values...)
	if err != nil {
		return false, fmt.Errorf("entity: delete %s: %w", meta.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) queryOne(ctx context.Context, meta Metadata, query string, args []any) (Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanRecords(meta, rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return records[0], nil
}

func prefixed(meta Metadata) []string {
	cols := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		cols[i] = meta.Alias + "." + c
	}
	return cols
}

func scanRecords(meta Metadata, rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("entity: scan %s: %w", meta.Name, err)
		}
		record := make(Record, len(meta.Columns))
		for i, column := range meta.Columns {
			if i < len(values) {
				record[column] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entity: rows %s: %w", meta.Name, err)
	}
	return records, nil
}
