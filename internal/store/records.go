package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/datasheet/internal/core"
)

// AttributeNames returns the attribute names accepted for kind.
func (s *Store) AttributeNames(kind core.EntityKind) map[string]bool {
	def, ok := core.Definition(kind)
	if !ok {
		return map[string]bool{}
	}
	return def.AttributeNames()
}

func definition(kind core.EntityKind) (core.EntityDefinition, error) {
	def, ok := core.Definition(kind)
	if !ok {
		return core.EntityDefinition{}, fmt.Errorf("unknown entity kind: %s", kind)
	}
	return def, nil
}

// readable returns the specs read back into Record.Attributes.
func readable(def core.EntityDefinition) []core.FieldSpec {
	specs := make([]core.FieldSpec, 0, len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		if !spec.ReadOnly {
			specs = append(specs, spec)
		}
	}
	return specs
}

// selectFrom builds "SELECT id, CAST(col AS TEXT), ... FROM table".
func selectFrom(def core.EntityDefinition) string {
	cols := []string{"id"}
	for _, spec := range readable(def) {
		cols = append(cols, fmt.Sprintf("CAST(%s AS TEXT)", quoteIdentifier(spec.Column())))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdentifier(def.Table))
}

func scanRecord(r row, def core.EntityDefinition) (core.Record, error) {
	specs := readable(def)
	values := make([]sql.NullString, len(specs))
	dest := make([]any, 0, len(specs)+1)

	rec := core.Record{Kind: def.Kind, Attributes: make(core.Attributes, len(specs))}
	dest = append(dest, &rec.ID)
	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := r.Scan(dest...); err != nil {
		return core.Record{}, err
	}
	for i, spec := range specs {
		if values[i].Valid {
			rec.Attributes[spec.Name] = values[i].String
		}
	}
	return rec, nil
}

// lookupArg converts a lookup value to the key's column type. ok is false
// when no stored record could hold the value.
func lookupArg(def core.EntityDefinition, key, value string) (column string, arg any, ok bool, err error) {
	spec, found := def.Field(key)
	if !found {
		return "", nil, false, core.ValidationError{Field: key, Value: value, Message: fmt.Sprintf("unknown attribute for %s", def.Kind)}
	}
	arg, convErr := core.ConvertValue(spec, value)
	if convErr != nil {
		return "", nil, false, nil
	}
	if spec.ReadOnly {
		return "id", arg, true, nil
	}
	return quoteIdentifier(spec.Column()), arg, true, nil
}

// FindAll returns every record of kind whose key attribute equals value.
func (s *Store) FindAll(ctx context.Context, kind core.EntityKind, key, value string) ([]core.Record, error) {
	def, err := definition(kind)
	if err != nil {
		return nil, err
	}
	column, arg, ok, err := lookupArg(def, key, value)
	if err != nil || !ok {
		return nil, err
	}

	query := fmt.Sprintf("%s WHERE %s = ? ORDER BY id", selectFrom(def), column)
	rs, err := s.db.query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", kind, key, err)
	}
	defer rs.Close()

	var records []core.Record
	for rs.Next() {
		rec, err := scanRecord(rs, def)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		records = append(records, rec)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// FindByNaturalKey tries each natural key of kind in order and returns the
// first (lowest id) record whose key equals value.
func (s *Store) FindByNaturalKey(ctx context.Context, kind core.EntityKind, value string) (core.Record, error) {
	def, err := definition(kind)
	if err != nil {
		return core.Record{}, err
	}

	for _, key := range def.NaturalKeys {
		column, arg, ok, err := lookupArg(def, key, value)
		if err != nil {
			return core.Record{}, err
		}
		if !ok {
			continue
		}

		query := fmt.Sprintf("%s WHERE %s = ? ORDER BY id LIMIT 1", selectFrom(def), column)
		rec, err := scanRecord(s.db.queryRow(ctx, query, arg), def)
		switch {
		case err == nil:
			return rec, nil
		case !errors.Is(err, sql.ErrNoRows):
			return core.Record{}, fmt.Errorf("find %s by %s: %w", kind, key, err)
		}
	}

	return core.Record{}, fmt.Errorf("%s %q: %w", kind, value, core.ErrNotFound)
}

// FindByID returns the record of kind with the given identifier.
func (s *Store) FindByID(ctx context.Context, kind core.EntityKind, id int64) (core.Record, error) {
	def, err := definition(kind)
	if err != nil {
		return core.Record{}, err
	}

	rec, err := scanRecord(s.db.queryRow(ctx, selectFrom(def)+" WHERE id = ?", id), def)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("find %s %d: %w", kind, id, err)
	}
	return rec, nil
}

// Create validates attrs and inserts a new record.
func (s *Store) Create(ctx context.Context, kind core.EntityKind, attrs core.Attributes) (core.Record, error) {
	def, err := definition(kind)
	if err != nil {
		return core.Record{}, err
	}
	cols, err := core.BuildColumns(def, attrs, true)
	if err != nil {
		return core.Record{}, err
	}

	names := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = quoteIdentifier(c.Name)
		args[i] = c.Value
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		quoteIdentifier(def.Table), strings.Join(names, ", "), placeholders(len(cols)))

	var id int64
	if err := s.db.queryRow(ctx, query, args...).Scan(&id); err != nil {
		return core.Record{}, writeError("create "+string(kind), err)
	}
	return s.FindByID(ctx, kind, id)
}

// Update validates attrs and applies them to rec. Read-only attributes are
// ignored; an update with nothing to write succeeds without touching the row.
func (s *Store) Update(ctx context.Context, rec core.Record, attrs core.Attributes) error {
	def, err := definition(rec.Kind)
	if err != nil {
		return err
	}
	cols, err := core.BuildColumns(def, attrs, false)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, quoteIdentifier(c.Name)+" = ?")
		args = append(args, c.Value)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, rec.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quoteIdentifier(def.Table), strings.Join(sets, ", "))
	n, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return writeError(fmt.Sprintf("update %s %d", rec.Kind, rec.ID), err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", rec.Kind, rec.ID, core.ErrNotFound)
	}
	return nil
}
