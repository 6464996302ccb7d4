package store

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/JonMunkholm/datasheet/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, Options{URL: "sqlite::memory:"})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return s
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url         string
		wantDialect Dialect
		wantDSN     string
	}{
		{"postgres://user:pw@localhost:5432/shop", DialectPostgres, "postgres://user:pw@localhost:5432/shop"},
		{"postgresql://localhost/shop", DialectPostgres, "postgresql://localhost/shop"},
		{"sqlite://data/shop.db", DialectSQLite, "data/shop.db"},
		{"sqlite::memory:", DialectSQLite, ":memory:"},
		{"file:shop.db?cache=shared", DialectSQLite, "file:shop.db?cache=shared"},
		{"shop.db", DialectSQLite, "shop.db"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d, dsn := ParseURL(tt.url)
			if d != tt.wantDialect || dsn != tt.wantDSN {
				t.Errorf("ParseURL() = (%s, %q), want (%s, %q)", d, dsn, tt.wantDialect, tt.wantDSN)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	got := rebind("SELECT a FROM t WHERE b = ? AND c IN (?, ?)")
	want := "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error: %v", err)
	}
}

func TestCreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, core.KindPrimary, core.Attributes{
		"id": "99", "name": "Widget", "sku": "W-1", "price": "$9.99", "available_on": "3/15/2024",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.ID == 99 {
		t.Error("read-only id was written")
	}
	want := core.Attributes{"name": "Widget", "sku": "W-1", "price": "9.99", "available_on": "2024-03-15"}
	if !reflect.DeepEqual(p.Attributes, want) {
		t.Errorf("Attributes = %v, want %v", p.Attributes, want)
	}

	for _, ref := range []string{"W-1", "Widget"} {
		got, err := s.FindByNaturalKey(ctx, core.KindPrimary, ref)
		if err != nil || got.ID != p.ID {
			t.Errorf("FindByNaturalKey(%q) = %v, %v", ref, got.ID, err)
		}
	}

	if _, err := s.FindByNaturalKey(ctx, core.KindPrimary, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindByNaturalKey(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindByID(ctx, core.KindPrimary, p.ID+100); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrNotFound", err)
	}

	v, err := s.Create(ctx, core.KindDependent, core.Attributes{
		"product_id": itoa(p.ID), "sku": "W-1-RED", "is_master": "no",
	})
	if err != nil {
		t.Fatalf("Create(variant) error: %v", err)
	}
	if v.Attributes["product_id"] != itoa(p.ID) || v.Attributes["is_master"] != "0" {
		t.Errorf("variant attributes = %v", v.Attributes)
	}
}

func TestCreate_Rejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		kind  core.EntityKind
		attrs core.Attributes
	}{
		{"missing required", core.KindPrimary, core.Attributes{"sku": "W-1"}},
		{"unknown attribute", core.KindPrimary, core.Attributes{"name": "W", "colour": "red"}},
		{"bad number", core.KindPrimary, core.Attributes{"name": "W", "price": "cheap"}},
		{"dangling foreign key", core.KindDependent, core.Attributes{"product_id": "4242", "sku": "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.kind, tt.attrs)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFindAllAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B"} {
		if _, err := s.Create(ctx, core.KindPrimary, core.Attributes{"name": name, "sku": "W-1"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Create(ctx, core.KindPrimary, core.Attributes{"name": "C", "sku": "W-2"}); err != nil {
		t.Fatal(err)
	}

	records, err := s.FindAll(ctx, core.KindPrimary, "sku", "W-1")
	if err != nil {
		t.Fatalf("FindAll() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("FindAll() = %d records, want 2", len(records))
	}

	if err := s.Update(ctx, records[0], core.Attributes{"sku": "W-1", "price": "12.50"}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got, _ := s.FindByID(ctx, core.KindPrimary, records[0].ID)
	if got.Attributes["price"] != "12.5" {
		t.Errorf("price = %q, want 12.5", got.Attributes["price"])
	}

	if err := s.Update(ctx, records[1], core.Attributes{"price": "cheap"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Update(bad) error = %v, want ErrValidation", err)
	}
	if err := s.Update(ctx, core.Record{ID: 9999, Kind: core.KindPrimary}, core.Attributes{"price": "1"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	byID, err := s.FindAll(ctx, core.KindPrimary, "id", itoa(records[1].ID))
	if err != nil || len(byID) != 1 {
		t.Errorf("FindAll(id) = %v, %v", byID, err)
	}
	if none, err := s.FindAll(ctx, core.KindPrimary, "price", "not a number"); err != nil || len(none) != 0 {
		t.Errorf("FindAll(unconvertible) = %v, %v", none, err)
	}
	if _, err := s.FindAll(ctx, core.KindPrimary, "colour", "red"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("FindAll(unknown key) error = %v, want ErrValidation", err)
	}
}

func TestOptionTypesIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, _ := s.Create(ctx, core.KindPrimary, core.Attributes{"name": "Widget"})
	v, _ := s.Create(ctx, core.KindDependent, core.Attributes{"product_id": itoa(p.ID), "sku": "W-1"})

	first, err := s.FindOrCreateOptionType(ctx, "Color", p.ID)
	if err != nil {
		t.Fatalf("FindOrCreateOptionType() error: %v", err)
	}
	second, err := s.FindOrCreateOptionType(ctx, "Color", p.ID)
	if err != nil || second.ID != first.ID {
		t.Errorf("second FindOrCreateOptionType() = %v, %v; want id %d", second, err, first.ID)
	}

	red1, _ := s.FindOrCreateOptionValue(ctx, "red", first.ID)
	red2, _ := s.FindOrCreateOptionValue(ctx, "red", first.ID)
	if red1.ID != red2.ID {
		t.Errorf("option value duplicated: %d != %d", red1.ID, red2.ID)
	}
	blue, _ := s.FindOrCreateOptionValue(ctx, "blue", first.ID)

	for _, id := range []int64{red1.ID, red1.ID, blue.ID} {
		if err := s.AttachOptionValue(ctx, v.ID, id); err != nil {
			t.Fatalf("AttachOptionValue() error: %v", err)
		}
	}
	names, _ := s.OptionValueNames(ctx, v.ID)
	if want := []string{"Color:blue", "Color:red"}; !reflect.DeepEqual(names, want) {
		t.Errorf("OptionValueNames() = %v, want %v", names, want)
	}

	if err := s.DetachOptionValue(ctx, v.ID, red1.ID); err != nil {
		t.Fatalf("DetachOptionValue() error: %v", err)
	}
	names, _ = s.OptionValueNames(ctx, v.ID)
	if want := []string{"Color:blue"}; !reflect.DeepEqual(names, want) {
		t.Errorf("after detach = %v, want %v", names, want)
	}

	types, _ := s.ProductOptionTypes(ctx, p.ID)
	if want := []string{"Color"}; !reflect.DeepEqual(types, want) {
		t.Errorf("ProductOptionTypes() = %v, want %v", types, want)
	}
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	ids := []string{
		"0b6a8f4e-3c1d-4f7a-9f64-2f1a7c3e5d01",
		"0b6a8f4e-3c1d-4f7a-9f64-2f1a7c3e5d02",
	}
	for i, id := range ids {
		if _, err := s.CreateRun(ctx, core.Run{
			ID: id, FileName: "sheet.xlsx", Path: "/uploads/" + id + "/sheet.xlsx",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, false)
	if err != nil || len(runs) != 2 || runs[0].ID != ids[1] {
		t.Fatalf("ListRuns() = %+v, %v; want newest first", runs, err)
	}
	if runs[0].Processed() || runs[0].Deleted() {
		t.Errorf("new run should be pending: %+v", runs[0])
	}

	summary := core.Summary{
		ProcessedAt: base.Add(time.Hour),
		Stats:       core.Stats{Matched: 3, Updated: 2, Failed: 1, FailedQueries: 4, Skipped: 5, Created: 6},
	}
	if err := s.CompleteRun(ctx, ids[0], summary); err != nil {
		t.Fatalf("CompleteRun() error: %v", err)
	}
	got, err := s.GetRun(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if !got.Processed() || !got.ProcessedAt.Equal(summary.ProcessedAt) || got.Stats != summary.Stats {
		t.Errorf("GetRun() = %+v, want summary %+v", got, summary)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}

	if err := s.CompleteRun(ctx, ids[0], summary); !errors.Is(err, core.ErrRunProcessed) {
		t.Errorf("second CompleteRun() error = %v, want ErrRunProcessed", err)
	}
	if err := s.CompleteRun(ctx, "missing", summary); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("CompleteRun(missing) error = %v, want ErrRunNotFound", err)
	}

	if err := s.SoftDeleteRun(ctx, ids[1]); err != nil {
		t.Fatalf("SoftDeleteRun() error: %v", err)
	}
	if err := s.SoftDeleteRun(ctx, ids[1]); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("second SoftDeleteRun() error = %v, want ErrRunNotFound", err)
	}

	visible, _ := s.ListRuns(ctx, false)
	all, _ := s.ListRuns(ctx, true)
	if len(visible) != 1 || len(all) != 2 {
		t.Errorf("ListRuns visible=%d all=%d, want 1 and 2", len(visible), len(all))
	}
	deleted, _ := s.GetRun(ctx, ids[1])
	if !deleted.Deleted() {
		t.Error("GetRun() should still return a soft-deleted run")
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
