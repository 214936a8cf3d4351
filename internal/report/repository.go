package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/session"
	"github.com/harunnryd/ouvidoria/internal/store"

	"github.com/oklog/ulid/v2"
)

// Repository persists records. Insert returns an ErrConflict-categorized
// error when the protocol is already taken.
type Repository interface {
	Insert(ctx context.Context, r *Record) (string, error)
	FindByProtocol(ctx context.Context, protocol string) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
}

var columns = []string{
	"id", "protocol", "credential_hash", "report_type",
	"name", "email", "phone",
	"description", "ai_summary", "category",
	"incident_date", "location", "people_involved", "witnesses",
	"evidence_note", "recurrence", "severity", "media_refs",
	"status", "source", "created_at",
}

// Schema returns the table layout records are written to.
func Schema(table string) store.TableSchema {
	return store.TableSchema{
		Name:    table,
		Columns: columns,
		Unique:  []string{"id", "protocol"},
		OrderBy: "created_at",
	}
}

// StoreRepository maps records onto a generic RecordStore table.
type StoreRepository struct {
	store store.RecordStore
	table string
}

func NewStoreRepository(rs store.RecordStore, table string) *StoreRepository {
	return &StoreRepository{store: rs, table: table}
}

func (r *StoreRepository) Insert(ctx context.Context, rec *Record) (string, error) {
	rec.Sanitize()
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row, err := toRow(rec)
	if err != nil {
		return "", err
	}
	if err := r.store.Insert(ctx, r.table, row); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *StoreRepository) FindByProtocol(ctx context.Context, protocol string) (*Record, error) {
	rows, err := r.store.Select(ctx, r.table, map[string]any{"protocol": protocol}, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ouvErrors.NotFound(fmt.Sprintf("protocol %s", protocol))
	}
	return fromRow(rows[0])
}

func (r *StoreRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := r.store.Select(ctx, r.table, nil, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func toRow(rec *Record) (store.Row, error) {
	var media any
	if len(rec.MediaRefs) > 0 {
		b, err := json.Marshal(rec.MediaRefs)
		if err != nil {
			return nil, fmt.Errorf("encode media refs: %w", err)
		}
		media = string(b)
	}

	return store.Row{
		"id":              rec.ID,
		"protocol":        rec.Protocol,
		"credential_hash": nullable(rec.CredentialHash),
		"report_type":     string(rec.ReportType),
		"name":            nullable(rec.Name),
		"email":           nullable(rec.Email),
		"phone":           nullable(rec.Phone),
		"description":     rec.Description,
		"ai_summary":      nullable(rec.AISummary),
		"category":        nullable(rec.Category),
		"incident_date":   nullable(rec.IncidentDate),
		"location":        nullable(rec.Location),
		"people_involved": nullable(rec.Involved),
		"witnesses":       nullable(rec.Witnesses),
		"evidence_note":   nullable(rec.EvidenceNote),
		"recurrence":      nullable(rec.Recurrence),
		"severity":        nullable(rec.Severity),
		"media_refs":      media,
		"status":          rec.Status,
		"source":          nullable(rec.Source),
		"created_at":      rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func str(row store.Row, column string) string {
	if v, ok := row[column].(string); ok {
		return v
	}
	return ""
}

func fromRow(row store.Row) (*Record, error) {
	rec := &Record{
		ID:             str(row, "id"),
		Protocol:       str(row, "protocol"),
		CredentialHash: str(row, "credential_hash"),
		ReportType:     session.ReportType(str(row, "report_type")),
		Name:           str(row, "name"),
		Email:          str(row, "email"),
		Phone:          str(row, "phone"),
		Description:    str(row, "description"),
		AISummary:      str(row, "ai_summary"),
		Category:       str(row, "category"),
		IncidentDate:   str(row, "incident_date"),
		Location:       str(row, "location"),
		Involved:       str(row, "people_involved"),
		Witnesses:      str(row, "witnesses"),
		EvidenceNote:   str(row, "evidence_note"),
		Recurrence:     str(row, "recurrence"),
		Severity:       str(row, "severity"),
		Status:         str(row, "status"),
		Source:         str(row, "source"),
	}

	if raw := str(row, "media_refs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.MediaRefs); err != nil {
			return nil, fmt.Errorf("decode media refs for %s: %w", rec.Protocol, err)
		}
	}
	if raw := str(row, "created_at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", rec.Protocol, err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}
