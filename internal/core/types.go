package core

import (
	"context"
	"maps"
	"time"
)

// EntityKind names one of the two reconciled entity collections.
type EntityKind string

const (
	// KindPrimary is the top-level catalog record defined by sheet 0.
	KindPrimary EntityKind = "product"
	// KindDependent references exactly one primary record by foreign key.
	KindDependent EntityKind = "variant"
)

// FieldType represents the expected data type for an entity attribute.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldInteger
	FieldDate
	FieldBool
)

// FieldSpec defines how one spreadsheet header maps onto an entity column.
type FieldSpec struct {
	Name       string              // Header name (matched exactly)
	DBColumn   string              // Database column name (defaults to Name)
	Type       FieldType           // Expected data type
	Required   bool                // Must be present and non-empty on create
	ReadOnly   bool                // Never written from a sheet (e.g. id)
	Normalizer func(string) string // Optional transformation applied before validation
}

// Column returns the database column backing the field.
func (f FieldSpec) Column() string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return f.Name
}

// EntityDefinition describes one entity kind: its table, attributes and keys.
type EntityDefinition struct {
	Kind       EntityKind
	Table      string
	Label      string
	FieldSpecs []FieldSpec

	// NaturalKeys are tried in order when a record is located by a
	// human-readable reference rather than its identifier.
	NaturalKeys []string

	// ForeignKey is the header that references the primary entity.
	// Empty for the primary entity itself.
	ForeignKey string
}

// Field returns the spec for an attribute name.
func (d EntityDefinition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.FieldSpecs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// AttributeNames returns the set of attribute names the entity accepts.
func (d EntityDefinition) AttributeNames() map[string]bool {
	names := make(map[string]bool, len(d.FieldSpecs))
	for _, f := range d.FieldSpecs {
		names[f.Name] = true
	}
	return names
}

// Attributes maps header names to the non-null cell values of one row.
type Attributes map[string]string

// Clone returns a copy that can be modified independently.
func (a Attributes) Clone() Attributes {
	return maps.Clone(a)
}

// Exception is one exclusion-column cell diverted away from Attributes.
type Exception struct {
	Keyword string // Registered keyword the header matched
	Header  string // Original header text
	Raw     string // Cell text
}

// Exceptions holds a row's exclusion cells in column order.
type Exceptions []Exception

// Record is one persisted primary or dependent entity.
type Record struct {
	ID         int64
	Kind       EntityKind
	Attributes Attributes
}

// OptionType is a categorical dimension (e.g. "Color") owned by a primary record.
type OptionType struct {
	ID   int64
	Name string
}

// OptionValue is one permitted value of an option type (e.g. "red").
type OptionValue struct {
	ID           int64
	OptionTypeID int64
	Name         string
}

// Repository is the persistence collaborator the reconciler works against.
// Lookups that find nothing return an error wrapping ErrNotFound.
type Repository interface {
	AttributeNames(kind EntityKind) map[string]bool

	FindAll(ctx context.Context, kind EntityKind, key, value string) ([]Record, error)
	FindByNaturalKey(ctx context.Context, kind EntityKind, value string) (Record, error)
	FindByID(ctx context.Context, kind EntityKind, id int64) (Record, error)
	Create(ctx context.Context, kind EntityKind, attrs Attributes) (Record, error)
	Update(ctx context.Context, rec Record, attrs Attributes) error

	FindOrCreateOptionType(ctx context.Context, name string, productID int64) (OptionType, error)
	FindOrCreateOptionValue(ctx context.Context, name string, optionTypeID int64) (OptionValue, error)
	AttachOptionValue(ctx context.Context, variantID, optionValueID int64) error
	DetachOptionValue(ctx context.Context, variantID, optionValueID int64) error
}

// Run is one datasheet submission and its processing summary.
type Run struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName"`
	Path        string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	Stats       Stats      `json:"stats"`
}

// Processed reports whether the run has completed.
func (r Run) Processed() bool {
	return r.ProcessedAt != nil
}

// Deleted reports whether the run has been soft-deleted.
func (r Run) Deleted() bool {
	return r.DeletedAt != nil
}

// Summary is written to a run exactly once, when processing completes.
type Summary struct {
	ProcessedAt time.Time `json:"processedAt"`
	Stats
}

// RunStore persists datasheet runs.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, includeDeleted bool) ([]Run, error)
	SoftDeleteRun(ctx context.Context, id string) error
	CompleteRun(ctx context.Context, id string, summary Summary) error
}
