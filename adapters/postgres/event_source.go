// Package postgres serves event records stored in postgres tables: one table
// per record set, one row per event, array branches as double precision[]
// columns, rows ordered by their entry number.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"wjjfit/domain/event"
	"wjjfit/internal/errors"
	"wjjfit/internal/logging"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DefaultSchema is used when a locator names no schema
const DefaultSchema = "public"

// entryColumn orders the events of a record set
const entryColumn = "entry"

// EventSource implements ports.EventSource over a postgres database. The
// locator names the schema holding the record-set tables.
type EventSource struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEventSource creates an event source on db
func NewEventSource(db *sqlx.DB) *EventSource {
	return &EventSource{db: db, logger: logging.Component("postgres")}
}

func schemaOf(locator string) string {
	if locator == "" {
		return DefaultSchema
	}
	return locator
}

func qualified(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// Exists reports whether the record set's table exists
func (s *EventSource) Exists(ctx context.Context, locator, recordSet string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2)`, schemaOf(locator), recordSet)
	if err != nil {
		return false, errors.SourceError("postgres", err)
	}
	return exists, nil
}

// Scan implements ports.EventSource
func (s *EventSource) Scan(ctx context.Context, locator, recordSet string, fn func(event.Record) error) error {
	schema := schemaOf(locator)
	exists, err := s.Exists(ctx, schema, recordSet)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound(fmt.Sprintf("record set %s in schema %s", recordSet, schema))
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", qualified(schema, recordSet), pq.QuoteIdentifier(entryColumn))
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return errors.SourceError("postgres", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return errors.SourceError("postgres", err)
	}
	arrays := make(map[string]bool)
	for _, ct := range types {
		if strings.HasPrefix(ct.DatabaseTypeName(), "_") {
			arrays[ct.Name()] = true
		}
	}

	n := 0
	for rows.Next() {
		raw := make(map[string]any, len(types))
		if err := rows.MapScan(raw); err != nil {
			return errors.SourceError("postgres", err)
		}
		rec, err := toRecord(raw, arrays)
		if err != nil {
			return errors.Wrapf(err, "%s row %d", recordSet, n+1)
		}
		if err := fn(rec); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return errors.SourceError("postgres", err)
	}

	s.logger.Debug("scanned record set",
		zap.String("schema", schema),
		zap.String("record_set", recordSet),
		zap.Int("records", n))
	return nil
}

func toRecord(raw map[string]any, arrays map[string]bool) (event.Record, error) {
	rec := make(event.Record, len(raw))
	for name, v := range raw {
		if name == entryColumn || v == nil {
			continue
		}
		if arrays[name] {
			var arr pq.Float64Array
			if err := arr.Scan(v); err != nil {
				return nil, errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "column %s", name)
			}
			rec[name] = []float64(arr)
			continue
		}
		switch x := v.(type) {
		case []byte:
			// numeric columns arrive as text
			cols, err := event.FromColumns(map[string]any{name: x})
			if err != nil {
				return nil, err
			}
			rec[name] = cols[name]
		default:
			rec[name] = x
		}
	}
	return rec, nil
}

// Store creates the record set's table (replacing any previous one) and
// inserts records in order. Integer scalars become bigint columns, other
// scalars double precision and arrays double precision[].
func (s *EventSource) Store(ctx context.Context, locator, recordSet string, records []event.Record) error {
	schema := schemaOf(locator)
	cols, ddl, err := columnTypes(records)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.SourceError("postgres", err)
	}
	defer tx.Rollback()

	table := qualified(schema, recordSet)
	defs := []string{pq.QuoteIdentifier(entryColumn) + " BIGINT PRIMARY KEY"}
	for _, c := range cols {
		defs = append(defs, pq.QuoteIdentifier(c)+" "+ddl[c])
	}
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schema)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", ")),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.SourceError("postgres", err)
		}
	}

	names := []string{pq.QuoteIdentifier(entryColumn)}
	placeholders := []string{"$1"}
	for i, c := range cols {
		names = append(names, pq.QuoteIdentifier(c))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	for i, rec := range records {
		args := []any{int64(i)}
		for _, c := range cols {
			v, ok := rec[c]
			switch {
			case !ok:
				args = append(args, nil)
			case ddl[c] == "DOUBLE PRECISION[]":
				arr, err := rec.Floats(c)
				if err != nil {
					return err
				}
				args = append(args, pq.Float64Array(arr))
			default:
				args = append(args, v)
			}
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return errors.SourceError("postgres", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.SourceError("postgres", err)
	}
	return nil
}

func columnTypes(records []event.Record) ([]string, map[string]string, error) {
	ddl := make(map[string]string)
	for _, rec := range records {
		for name, v := range rec {
			if name == entryColumn {
				return nil, nil, errors.InvalidInput(fmt.Sprintf("field name %q is reserved", entryColumn))
			}
			var t string
			switch v.(type) {
			case []float64, []float32:
				t = "DOUBLE PRECISION[]"
			case int, int32, int64:
				t = "BIGINT"
			case float64, float32:
				t = "DOUBLE PRECISION"
			default:
				return nil, nil, errors.InvalidInput(fmt.Sprintf("field %s has unsupported type %T", name, v))
			}
			if prev, ok := ddl[name]; ok && prev != t {
				if prev == "BIGINT" && t == "DOUBLE PRECISION" || prev == "DOUBLE PRECISION" && t == "BIGINT" {
					t = "DOUBLE PRECISION"
				} else {
					return nil, nil, errors.InvalidInput(fmt.Sprintf("field %s mixes %s and %s", name, prev, t))
				}
			}
			ddl[name] = t
		}
	}
	cols := make([]string, 0, len(ddl))
	for name := range ddl {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols, ddl, nil
}
