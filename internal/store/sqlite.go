package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a RecordStore on a single sqlite file.
type SQLiteStore struct {
	db      *sql.DB
	schemas map[string]TableSchema
}

// OpenSQLite opens (or creates) the database at path and ensures every table exists.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, schemas ...TableSchema) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create records dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &SQLiteStore{db: db, schemas: make(map[string]TableSchema, len(schemas))}
	for _, schema := range schemas {
		if err := s.ensureTable(ctx, schema); err != nil {
			db.Close()
			return nil, err
		}
		s.schemas[schema.Name] = schema
	}
	return s, nil
}

func (s *SQLiteStore) ensureTable(ctx context.Context, schema TableSchema) error {
	if len(schema.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", schema.Name)
	}

	cols := make([]string, 0, len(schema.Columns)+1)
	cols = append(cols, "rowid_ INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range schema.Columns {
		def := quoteIdent(c) + " TEXT"
		for _, u := range schema.Unique {
			if u == c {
				def += " UNIQUE"
			}
		}
		cols = append(cols, def)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(schema.Name), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name, err)
	}
	return nil
}

func (s *SQLiteStore) schema(table string) (TableSchema, error) {
	schema, ok := s.schemas[table]
	if !ok {
		return TableSchema{}, ouvErrors.InvalidInput(fmt.Sprintf("unknown table %q", table))
	}
	return schema, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, table string, row Row) error {
	schema, err := s.schema(table)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return ouvErrors.InvalidInput("empty row")
	}

	columns := make([]string, 0, len(row))
	for c := range row {
		if !schema.has(c) {
			return ouvErrors.InvalidInput(fmt.Sprintf("unknown column %q in table %s", c, table))
		}
		columns = append(columns, c)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		args[i] = row[c]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ouvErrors.WrapWithCategory(err, "insert "+table, ouvErrors.ErrConflict)
		}
		return ouvErrors.MapError(fmt.Errorf("insert %s: %w", table, err))
	}
	return nil
}

func (s *SQLiteStore) Select(ctx context.Context, table string, filters map[string]any, limit int) ([]Row, error) {
	schema, err := s.schema(table)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(filters))
	for c := range filters {
		if !schema.has(c) {
			return nil, ouvErrors.InvalidInput(fmt.Sprintf("unknown column %q in table %s", c, table))
		}
		keys = append(keys, c)
	}
	sort.Strings(keys)

	quotedCols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		quotedCols[i] = quoteIdent(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quotedCols, ", "), quoteIdent(table))
	args := make([]any, 0, len(keys)+1)
	for i, c := range keys {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(quoteIdent(c) + " = ?")
		args = append(args, filters[c])
	}
	if schema.OrderBy != "" {
		b.WriteString(" ORDER BY " + quoteIdent(schema.OrderBy) + " DESC, rowid_ DESC")
	}
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, ouvErrors.MapError(fmt.Errorf("query failed: %w", err))
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values := make([]sql.NullString, len(schema.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		row := make(Row, len(schema.Columns))
		for i, c := range schema.Columns {
			if values[i].Valid {
				row[c] = values[i].String
			} else {
				row[c] = nil
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Ping is used by the daemon health check.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
