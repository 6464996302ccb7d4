package core

import "github.com/JonMunkholm/datasheet/internal/sheet"

// IDHeader is the structural header at position 0 that marks create rows.
const IDHeader = "id"

// Action is the reconciliation a row is routed to.
type Action int

const (
	ActionInvalid Action = iota
	ActionCreatePrimary
	ActionCreateDependent
	ActionUpdatePrimary
	ActionUpdateDependent
)

func (a Action) String() string {
	switch a {
	case ActionCreatePrimary:
		return "create_primary"
	case ActionCreateDependent:
		return "create_dependent"
	case ActionUpdatePrimary:
		return "update_primary"
	case ActionUpdateDependent:
		return "update_dependent"
	default:
		return "invalid"
	}
}

// Schema is the header contract rows are dispatched against.
//
// Position 0 of the header is either IDHeader (create rows) or the bulk
// update key. Position 1 may name ForeignKey, in which case a create row
// with a populated reference creates a dependent record.
type Schema struct {
	Primary    map[string]bool // attribute names of the primary entity
	Dependent  map[string]bool // attribute names of the dependent entity
	ForeignKey string          // header naming the primary reference
}

// NewSchema builds the dispatch schema from a repository's attribute names.
func NewSchema(repo Repository) Schema {
	return Schema{
		Primary:    repo.AttributeNames(KindPrimary),
		Dependent:  repo.AttributeNames(KindDependent),
		ForeignKey: MustDefinition(KindDependent).ForeignKey,
	}
}

// Dispatch classifies a data row. It depends only on the first two header
// cells, the first two row cells and attribute-name membership of
// header[0]; it keeps no state between rows. Missing header or row
// positions read as null, so short rows never panic.
func Dispatch(s Schema, header, row sheet.Row) Action {
	key := headerName(header.At(0))

	if key == IDHeader && !row.At(0).Valid {
		if headerName(header.At(1)) == s.ForeignKey && row.At(1).Valid {
			return ActionCreateDependent
		}
		return ActionCreatePrimary
	}

	if key == "" || !row.At(0).Valid {
		return ActionInvalid
	}

	switch {
	case s.Primary[key]:
		return ActionUpdatePrimary
	case s.Dependent[key]:
		return ActionUpdateDependent
	default:
		return ActionInvalid
	}
}
