package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/datasheet/internal/sheet"
)

// memRepo is an in-memory Repository. Writes are validated with
// BuildColumns so rejected values behave as they do against a database.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[EntityKind][]Record

	optionTypes  []OptionType
	productTypes map[int64][]int64 // product id -> option type ids
	optionValues []OptionValue
	attached     map[int64][]int64 // variant id -> option value ids

	failUpdate map[int64]bool // record ids whose Update is rejected
	panicOn    string         // attribute value that makes Create panic
}

func newMemRepo() *memRepo {
	return &memRepo{
		records:      make(map[EntityKind][]Record),
		productTypes: make(map[int64][]int64),
		attached:     make(map[int64][]int64),
		failUpdate:   make(map[int64]bool),
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) AttributeNames(kind EntityKind) map[string]bool {
	return MustDefinition(kind).AttributeNames()
}

func (m *memRepo) FindAll(_ context.Context, kind EntityKind, key, value string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.records[kind] {
		if rec.Attributes[key] == value {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRepo) FindByNaturalKey(_ context.Context, kind EntityKind, value string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range MustDefinition(kind).NaturalKeys {
		for _, rec := range m.records[kind] {
			if rec.Attributes[key] == value {
				return rec, nil
			}
		}
	}
	return Record{}, fmt.Errorf("%s %q: %w", kind, value, ErrNotFound)
}

func (m *memRepo) FindByID(_ context.Context, kind EntityKind, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records[kind] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

func (m *memRepo) Create(_ context.Context, kind EntityKind, attrs Attributes) (Record, error) {
	if _, err := BuildColumns(MustDefinition(kind), attrs, true); err != nil {
		return Record{}, err
	}
	for _, v := range attrs {
		if m.panicOn != "" && v == m.panicOn {
			panic("boom")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{ID: m.id(), Kind: kind, Attributes: attrs.Clone()}
	delete(rec.Attributes, "id")
	m.records[kind] = append(m.records[kind], rec)
	return rec, nil
}

func (m *memRepo) Update(_ context.Context, rec Record, attrs Attributes) error {
	if _, err := BuildColumns(MustDefinition(rec.Kind), attrs, false); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdate[rec.ID] {
		return errors.New("check constraint violated")
	}
	for i, existing := range m.records[rec.Kind] {
		if existing.ID != rec.ID {
			continue
		}
		for k, v := range attrs {
			if k != "id" {
				m.records[rec.Kind][i].Attributes[k] = v
			}
		}
		return nil
	}
	return ErrNotFound
}

func (m *memRepo) FindOrCreateOptionType(_ context.Context, name string, productID int64) (OptionType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ot OptionType
	for _, existing := range m.optionTypes {
		if existing.Name == name {
			ot = existing
		}
	}
	if ot.ID == 0 {
		ot = OptionType{ID: m.id(), Name: name}
		m.optionTypes = append(m.optionTypes, ot)
	}
	if !slices.Contains(m.productTypes[productID], ot.ID) {
		m.productTypes[productID] = append(m.productTypes[productID], ot.ID)
	}
	return ot, nil
}

func (m *memRepo) FindOrCreateOptionValue(_ context.Context, name string, optionTypeID int64) (OptionValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.optionValues {
		if existing.Name == name && existing.OptionTypeID == optionTypeID {
			return existing, nil
		}
	}
	ov := OptionValue{ID: m.id(), OptionTypeID: optionTypeID, Name: name}
	m.optionValues = append(m.optionValues, ov)
	return ov, nil
}

func (m *memRepo) AttachOptionValue(_ context.Context, variantID, optionValueID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.attached[variantID], optionValueID) {
		m.attached[variantID] = append(m.attached[variantID], optionValueID)
	}
	return nil
}

func (m *memRepo) DetachOptionValue(_ context.Context, variantID, optionValueID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attached[variantID] = slices.DeleteFunc(m.attached[variantID], func(id int64) bool {
		return id == optionValueID
	})
	return nil
}

// seed inserts a record directly, bypassing validation.
func (m *memRepo) seed(kind EntityKind, attrs Attributes) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{ID: m.id(), Kind: kind, Attributes: attrs}
	m.records[kind] = append(m.records[kind], rec)
	return rec
}

func (m *memRepo) count(kind EntityKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[kind])
}

// optionNames returns the "Type:value" pairs attached to a variant, sorted.
func (m *memRepo) optionNames(variantID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, vid := range m.attached[variantID] {
		for _, ov := range m.optionValues {
			if ov.ID != vid {
				continue
			}
			for _, ot := range m.optionTypes {
				if ot.ID == ov.OptionTypeID {
					out = append(out, ot.Name+":"+ov.Name)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// memRuns is an in-memory RunStore.
type memRuns struct {
	mu   sync.Mutex
	runs map[string]Run
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]Run)}
}

func (m *memRuns) CreateRun(_ context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return run, nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (m *memRuns) ListRuns(_ context.Context, includeDeleted bool) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, run := range m.runs {
		if run.Deleted() && !includeDeleted {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRuns) SoftDeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	now := time.Now()
	run.DeletedAt = &now
	m.runs[id] = run
	return nil
}

func (m *memRuns) CompleteRun(_ context.Context, id string, summary Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	at := summary.ProcessedAt
	run.ProcessedAt = &at
	run.Stats = summary.Stats
	m.runs[id] = run
	return nil
}

// row builds a sheet row; empty strings are null cells.
func row(cells ...string) sheet.Row {
	r := make(sheet.Row, len(cells))
	for i, c := range cells {
		r[i] = sheet.FromString(c)
	}
	return r
}

func sheetOf(name string, rows ...sheet.Row) *sheet.Sheet {
	return sheet.NewSheet(name, rows)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
