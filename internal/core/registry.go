package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[EntityKind]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the kind is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Kind))
	}
	registry[def.Kind] = def
}

// Definition returns the definition for kind.
func Definition(kind EntityKind) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// MustDefinition returns the definition for kind and panics when missing.
func MustDefinition(kind EntityKind) EntityDefinition {
	def, ok := Definition(kind)
	if !ok {
		panic(fmt.Sprintf("entity not registered: %s", kind))
	}
	return def
}

// All returns every registered definition sorted by kind.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

func init() {
	Register(EntityDefinition{
		Kind:  KindPrimary,
		Table: "products",
		Label: "Products",
		FieldSpecs: []FieldSpec{
			{Name: "id", Type: FieldInteger, ReadOnly: true},
			{Name: "name", Type: FieldText, Required: true},
			{Name: "sku", Type: FieldText},
			{Name: "description", Type: FieldText},
			{Name: "permalink", Type: FieldText},
			{Name: "price", Type: FieldNumeric},
			{Name: "cost_price", Type: FieldNumeric},
			{Name: "available_on", Type: FieldDate},
			{Name: "meta_description", Type: FieldText},
			{Name: "meta_keywords", Type: FieldText},
			{Name: "count_on_hand", Type: FieldInteger},
		},
		NaturalKeys: []string{"sku", "name"},
	})

	Register(EntityDefinition{
		Kind:  KindDependent,
		Table: "variants",
		Label: "Variants",
		FieldSpecs: []FieldSpec{
			{Name: "id", Type: FieldInteger, ReadOnly: true},
			{Name: "product_id", Type: FieldInteger, Required: true},
			{Name: "sku", Type: FieldText},
			{Name: "price", Type: FieldNumeric},
			{Name: "cost_price", Type: FieldNumeric},
			{Name: "weight", Type: FieldNumeric},
			{Name: "height", Type: FieldNumeric},
			{Name: "width", Type: FieldNumeric},
			{Name: "depth", Type: FieldNumeric},
			{Name: "is_master", Type: FieldBool},
			{Name: "count_on_hand", Type: FieldInteger},
			{Name: "position", Type: FieldInteger},
		},
		NaturalKeys: []string{"sku"},
		ForeignKey:  "product_id",
	})
}
