package recordstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tables in process memory.  It backs local development
// and every test that needs a store; records come back in creation order.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	now    func() time.Time
}

type memTable struct {
	order []string
	rows  map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable), now: time.Now}
}

// SetClock overrides the createdTime source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]Record)}
		m.tables[name] = t
	}
	return t
}

func (m *MemoryStore) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, id := range t.order {
		rec := t.rows[id]
		if !opts.Filter.Match(rec.Fields) {
			continue
		}
		out = append(out, cloneRecord(rec))
		if opts.MaxRecords > 0 && len(out) >= opts.MaxRecords {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, table, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec, ok := t.rows[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	rec := Record{
		ID:          "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		CreatedTime: m.now().UTC(),
		Fields:      Fields{},
	}
	for k, v := range fields {
		if v != nil {
			rec.Fields[k] = v
		}
	}
	t.rows[rec.ID] = rec
	t.order = append(t.order, rec.ID)
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec, ok := t.rows[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	merged := copyFields(rec.Fields)
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	rec.Fields = merged
	t.rows[id] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return ErrNotFound
	}
	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneRecord(r Record) Record {
	r.Fields = copyFields(r.Fields)
	return r
}
