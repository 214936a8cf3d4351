package store

import "context"

// Row is one record keyed by column name. Values are strings or nil (NULL).
type Row map[string]any

// TableSchema declares the columns a table accepts. Column names are never
// taken from callers unchecked; every statement is built from the schema.
type TableSchema struct {
	Name    string
	Columns []string
	// Unique columns get a UNIQUE constraint.
	Unique []string
	// OrderBy is used by Select when set (descending).
	OrderBy string
}

func (s TableSchema) has(column string) bool {
	for _, c := range s.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// RecordStore is the persistence the intake engine needs: insert a row and
// select rows by exact-match filters.
type RecordStore interface {
	Insert(ctx context.Context, table string, row Row) error
	Select(ctx context.Context, table string, filters map[string]any, limit int) ([]Row, error)
	Close() error
}
