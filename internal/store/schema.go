package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/datasheet/internal/core"
)

// columnTypes maps field types to column types per dialect.
var columnTypes = map[Dialect]map[core.FieldType]string{
	DialectPostgres: {
		core.FieldText:    "TEXT",
		core.FieldNumeric: "NUMERIC",
		core.FieldInteger: "BIGINT",
		core.FieldDate:    "DATE",
		core.FieldBool:    "BOOLEAN",
	},
	DialectSQLite: {
		core.FieldText:    "TEXT",
		core.FieldNumeric: "REAL",
		core.FieldInteger: "INTEGER",
		core.FieldDate:    "TEXT",
		core.FieldBool:    "INTEGER",
	},
}

func (s *Store) primaryKey() string {
	if s.dialect == DialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (s *Store) timestampType() string {
	if s.dialect == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

func (s *Store) runIDType() string {
	if s.dialect == DialectPostgres {
		return "UUID"
	}
	return "TEXT"
}

func (s *Store) idType() string {
	if s.dialect == DialectPostgres {
		return "BIGINT"
	}
	return "INTEGER"
}

// entityTable renders the CREATE TABLE statement for an entity definition.
// The foreign key column references the primary entity's table.
func (s *Store) entityTable(def core.EntityDefinition) string {
	cols := []string{"id " + s.primaryKey()}

	for _, spec := range def.FieldSpecs {
		if spec.ReadOnly {
			continue
		}
		col := quoteIdentifier(spec.Column()) + " " + columnTypes[s.dialect][spec.Type]
		if spec.Required {
			col += " NOT NULL"
		}
		if spec.Name == def.ForeignKey {
			primary := core.MustDefinition(core.KindPrimary)
			col += fmt.Sprintf(" REFERENCES %s(id) ON DELETE CASCADE", quoteIdentifier(primary.Table))
		}
		cols = append(cols, col)
	}

	ts := s.timestampType()
	cols = append(cols,
		"created_at "+ts+" NOT NULL DEFAULT CURRENT_TIMESTAMP",
		"updated_at "+ts+" NOT NULL DEFAULT CURRENT_TIMESTAMP",
	)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdentifier(def.Table), strings.Join(cols, ",\n\t"))
}

// schema returns the DDL statements in dependency order.
func (s *Store) schema() []string {
	products := core.MustDefinition(core.KindPrimary)
	variants := core.MustDefinition(core.KindDependent)
	pk, id, ts := s.primaryKey(), s.idType(), s.timestampType()

	stmts := []string{
		s.entityTable(products),
		s.entityTable(variants),
	}
	for _, key := range products.NaturalKeys {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			products.Table, key, quoteIdentifier(products.Table), quoteIdentifier(key)))
	}
	for _, key := range append([]string{variants.ForeignKey}, variants.NaturalKeys...) {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			variants.Table, key, quoteIdentifier(variants.Table), quoteIdentifier(key)))
	}

	return append(stmts,
		`CREATE TABLE IF NOT EXISTS option_types (
	id `+pk+`,
	name TEXT NOT NULL UNIQUE,
	presentation TEXT NOT NULL,
	created_at `+ts+` NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS product_option_types (
	product_id `+id+` NOT NULL REFERENCES `+quoteIdentifier(products.Table)+`(id) ON DELETE CASCADE,
	option_type_id `+id+` NOT NULL REFERENCES option_types(id) ON DELETE CASCADE,
	PRIMARY KEY (product_id, option_type_id)
)`,
		`CREATE TABLE IF NOT EXISTS option_values (
	id `+pk+`,
	option_type_id `+id+` NOT NULL REFERENCES option_types(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	presentation TEXT NOT NULL,
	created_at `+ts+` NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (option_type_id, name)
)`,
		`CREATE TABLE IF NOT EXISTS variant_option_values (
	variant_id `+id+` NOT NULL REFERENCES `+quoteIdentifier(variants.Table)+`(id) ON DELETE CASCADE,
	option_value_id `+id+` NOT NULL REFERENCES option_values(id) ON DELETE CASCADE,
	PRIMARY KEY (variant_id, option_value_id)
)`,
		`CREATE TABLE IF NOT EXISTS product_datasheets (
	id `+s.runIDType()+` PRIMARY KEY,
	file_name TEXT NOT NULL,
	path TEXT NOT NULL,
	processed_at `+ts+`,
	deleted_at `+ts+`,
	matched_records INTEGER NOT NULL DEFAULT 0,
	updated_records INTEGER NOT NULL DEFAULT 0,
	failed_records INTEGER NOT NULL DEFAULT 0,
	failed_queries INTEGER NOT NULL DEFAULT 0,
	skipped_records INTEGER NOT NULL DEFAULT 0,
	created_records INTEGER NOT NULL DEFAULT 0,
	created_at `+ts+` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_product_datasheets_created_at ON product_datasheets (created_at)`,
	)
}

// Migrate creates any missing tables and indexes. It is safe to run on
// every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\n%s", err, stmt)
		}
	}
	s.logger.Debug("schema migrated", "dialect", s.dialect)
	return nil
}
