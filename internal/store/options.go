package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/datasheet/internal/core"
)

// FindOrCreateOptionType returns the option type called name, creating it
// if needed, and links it to the product. Repeated calls are idempotent.
func (s *Store) FindOrCreateOptionType(ctx context.Context, name string, productID int64) (core.OptionType, error) {
	if _, err := s.db.exec(ctx,
		`INSERT INTO option_types (name, presentation) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, name,
	); err != nil {
		return core.OptionType{}, writeError("create option type "+name, err)
	}

	ot := core.OptionType{Name: name}
	if err := s.db.queryRow(ctx, `SELECT id FROM option_types WHERE name = ?`, name).Scan(&ot.ID); err != nil {
		return core.OptionType{}, fmt.Errorf("find option type %s: %w", name, err)
	}

	if _, err := s.db.exec(ctx,
		`INSERT INTO product_option_types (product_id, option_type_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		productID, ot.ID,
	); err != nil {
		return core.OptionType{}, writeError(fmt.Sprintf("link option type %s to product %d", name, productID), err)
	}
	return ot, nil
}

// FindOrCreateOptionValue returns the value called name within the option
// type, creating it if needed.
func (s *Store) FindOrCreateOptionValue(ctx context.Context, name string, optionTypeID int64) (core.OptionValue, error) {
	if _, err := s.db.exec(ctx,
		`INSERT INTO option_values (option_type_id, name, presentation) VALUES (?, ?, ?) ON CONFLICT (option_type_id, name) DO NOTHING`,
		optionTypeID, name, name,
	); err != nil {
		return core.OptionValue{}, writeError("create option value "+name, err)
	}

	ov := core.OptionValue{OptionTypeID: optionTypeID, Name: name}
	if err := s.db.queryRow(ctx,
		`SELECT id FROM option_values WHERE option_type_id = ? AND name = ?`,
		optionTypeID, name,
	).Scan(&ov.ID); err != nil {
		return core.OptionValue{}, fmt.Errorf("find option value %s: %w", name, err)
	}
	return ov, nil
}

// AttachOptionValue associates an option value with a variant.
// Attaching an existing association is a no-op.
func (s *Store) AttachOptionValue(ctx context.Context, variantID, optionValueID int64) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO variant_option_values (variant_id, option_value_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		variantID, optionValueID,
	)
	if err != nil {
		return writeError(fmt.Sprintf("attach option value %d to variant %d", optionValueID, variantID), err)
	}
	return nil
}

// DetachOptionValue removes an association. Detaching a missing
// association is a no-op.
func (s *Store) DetachOptionValue(ctx context.Context, variantID, optionValueID int64) error {
	_, err := s.db.exec(ctx,
		`DELETE FROM variant_option_values WHERE variant_id = ? AND option_value_id = ?`,
		variantID, optionValueID,
	)
	if err != nil {
		return fmt.Errorf("detach option value %d from variant %d: %w", optionValueID, variantID, err)
	}
	return nil
}

// OptionValueNames returns "Type:value" for every option value attached to
// the variant, ordered by type then value.
func (s *Store) OptionValueNames(ctx context.Context, variantID int64) ([]string, error) {
	rs, err := s.db.query(ctx, `
		SELECT ot.name, ov.name
		FROM variant_option_values vov
		JOIN option_values ov ON ov.id = vov.option_value_id
		JOIN option_types ot ON ot.id = ov.option_type_id
		WHERE vov.variant_id = ?
		ORDER BY ot.name, ov.name`, variantID)
	if err != nil {
		return nil, fmt.Errorf("list option values: %w", err)
	}
	defer rs.Close()

	var names []string
	for rs.Next() {
		var typeName, valueName string
		if err := rs.Scan(&typeName, &valueName); err != nil {
			return nil, fmt.Errorf("scan option value: %w", err)
		}
		names = append(names, typeName+":"+valueName)
	}
	return names, rs.Err()
}

// ProductOptionTypes returns the option type names linked to a product.
func (s *Store) ProductOptionTypes(ctx context.Context, productID int64) ([]string, error) {
	rs, err := s.db.query(ctx, `
		SELECT ot.name
		FROM product_option_types pot
		JOIN option_types ot ON ot.id = pot.option_type_id
		WHERE pot.product_id = ?
		ORDER BY ot.name`, productID)
	if err != nil {
		return nil, fmt.Errorf("list product option types: %w", err)
	}
	defer rs.Close()

	var names []string
	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan option type: %w", err)
		}
		names = append(names, name)
	}
	return names, rs.Err()
}
