package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore keeps every table in a single MySQL `records` table with the
// field bag stored as a JSON column.  It is the self-hosted alternative to
// the hosted store; see database.Migrate for the schema.
type SQLStore struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// NewSQLStore wraps an open MySQL handle.
func NewSQLStore(db *sql.DB, timeout time.Duration) *SQLStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SQLStore{db: db, timeout: timeout, now: time.Now}
}

func (s *SQLStore) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := "SELECT id, fields, created_at FROM records WHERE tbl = ?"
	args := []any{table}
	if f := opts.Filter; f != nil {
		if f.FoldCase {
			q += " AND LOWER(JSON_UNQUOTE(JSON_EXTRACT(fields, ?))) = LOWER(?)"
		} else {
			q += " AND JSON_UNQUOTE(JSON_EXTRACT(fields, ?)) = ?"
		}
		args = append(args, jsonPath(f.Field), f.Value)
	}
	q += " ORDER BY created_at, id"
	if opts.MaxRecords > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.MaxRecords)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.wrap(ctx, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, err)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, table, id string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx,
		"SELECT id, fields, created_at FROM records WHERE tbl = ? AND id = ?", table, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	return rec, nil
}

func (s *SQLStore) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	clean := Fields{}
	for k, v := range fields {
		if v != nil {
			clean[k] = v
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return Record{}, fmt.Errorf("recordstore: encode fields: %w", err)
	}
	rec := Record{
		ID:          "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		CreatedTime: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO records (tbl, id, fields, created_at) VALUES (?, ?, ?, ?)",
		table, rec.ID, raw, rec.CreatedTime); err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	// round-trip through JSON so callers see the same types as on reads
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update merges fields into the stored bag inside a transaction.  A nil
// value removes the key.
func (s *SQLStore) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT id, fields, created_at FROM records WHERE tbl = ? AND id = ? FOR UPDATE", table, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	for k, v := range fields {
		if v == nil {
			delete(rec.Fields, k)
			continue
		}
		rec.Fields[k] = v
	}
	raw, err := json.Marshal(rec.Fields)
	if err != nil {
		return Record{}, fmt.Errorf("recordstore: encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET fields = ? WHERE tbl = ? AND id = ?", raw, table, id); err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, s.wrap(ctx, err)
	}
	rec.Fields = nil
	if err := json.Unmarshal(raw, &rec.Fields); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, table, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE tbl = ? AND id = ?", table, id)
	if err != nil {
		return s.wrap(ctx, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) wrap(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("recordstore: mysql: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (Record, error) {
	var (
		rec Record
		raw []byte
	)
	if err := r.Scan(&rec.ID, &raw, &rec.CreatedTime); err != nil {
		return Record{}, err
	}
	rec.CreatedTime = rec.CreatedTime.UTC()
	rec.Fields = Fields{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Fields); err != nil {
			return Record{}, fmt.Errorf("recordstore: decode fields: %w", err)
		}
	}
	return rec, nil
}

// jsonPath builds a MySQL JSON path for a field name that may contain
// spaces or slashes, e.g. $."Customer Email".
func jsonPath(field string) string {
	field = strings.ReplaceAll(field, `\`, `\\`)
	field = strings.ReplaceAll(field, `"`, `\"`)
	return `$."` + field + `"`
}
