package core

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Reconciler applies dispatched rows to the repository.
//
// Every operation returns the Stats delta for its row and never an error:
// a rejected write or failed lookup is an outcome to count, not a reason
// to stop the run.
type Reconciler struct {
	repo     Repository
	handlers *HandlerRegistry
	logger   *slog.Logger
}

// NewReconciler returns a reconciler. A nil handlers registry means no
// exclusion keyword has a handler.
func NewReconciler(repo Repository, handlers *HandlerRegistry, logger *slog.Logger) *Reconciler {
	if handlers == nil {
		handlers = NewHandlerRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{repo: repo, handlers: handlers, logger: logger}
}

// CreatePrimary creates a product from attrs. If a product already exists
// under the row's natural key the row is skipped, so re-submitting a sheet
// does not duplicate records. Only the key column the row populates is
// compared.
func (r *Reconciler) CreatePrimary(ctx context.Context, attrs Attributes) Stats {
	if key := naturalKeyOf(KindPrimary, attrs); key != "" {
		found, err := r.exists(ctx, KindPrimary, key, attrs[key])
		switch {
		case err != nil:
			r.logger.Debug("product lookup failed", key, attrs[key], "error", err)
			return failedQuery()
		case found:
			return Stats{Skipped: 1}
		}
	}

	if _, err := r.repo.Create(ctx, KindPrimary, attrs); err != nil {
		r.logger.Debug("product create failed", "error", err)
		return failedQuery()
	}
	return Stats{Created: 1}
}

// CreateDependent creates a variant. The foreign-key cell is resolved to a
// product (by natural key, then by identifier) and replaced with its ID.
// Exclusion cells are handled before the variant is created because a
// handler may need to create the variant itself.
func (r *Reconciler) CreateDependent(ctx context.Context, attrs Attributes, exceptions Exceptions) Stats {
	fk := MustDefinition(KindDependent).ForeignKey

	parent, err := r.ResolveParent(ctx, attrs[fk])
	if err != nil {
		r.logger.Debug("unresolved product reference", fk, attrs[fk], "error", err)
		return failedQuery()
	}

	attrs = attrs.Clone()
	attrs[fk] = strconv.FormatInt(parent.ID, 10)

	rc := NewRowContext(parent, attrs)
	stats := r.handleExceptions(ctx, rc, exceptions)

	if rc.Failed() {
		return stats
	}
	if _, ok := rc.Dependent(); ok {
		if !rc.Created() {
			stats.Skipped++
		}
		return stats
	}

	if key := naturalKeyOf(KindDependent, attrs); key != "" {
		found, err := r.exists(ctx, KindDependent, key, attrs[key])
		switch {
		case err != nil:
			r.logger.Debug("variant lookup failed", key, attrs[key], "error", err)
			return stats.Add(failedQuery())
		case found:
			stats.Skipped++
			return stats
		}
	}

	if _, err := r.repo.Create(ctx, KindDependent, attrs); err != nil {
		r.logger.Debug("variant create failed", "error", err)
		return stats.Add(failedQuery())
	}
	stats.Created++
	return stats
}

// BulkUpdate applies attrs to every record of kind where key equals value.
// Each matched record ends up either updated or failed.
func (r *Reconciler) BulkUpdate(ctx context.Context, kind EntityKind, key, value string, attrs Attributes) Stats {
	records, err := r.repo.FindAll(ctx, kind, key, value)
	if err != nil {
		r.logger.Debug("bulk lookup failed", "kind", kind, "key", key, "error", err)
		return failedQuery()
	}

	stats := Stats{Matched: len(records)}
	if len(records) == 0 {
		stats.FailedQueries++
		return stats
	}

	for _, rec := range records {
		if err := r.repo.Update(ctx, rec, attrs); err != nil {
			r.logger.Debug("record update failed", "kind", kind, "id", rec.ID, "error", err)
			stats.Failed++
			continue
		}
		stats.Updated++
	}
	return stats
}

// ResolveParent finds the product a dependent row refers to. The reference
// is tried as a natural key first and then as a numeric identifier.
func (r *Reconciler) ResolveParent(ctx context.Context, ref string) (Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Record{}, ErrNotFound
	}

	rec, err := r.repo.FindByNaturalKey(ctx, KindPrimary, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	id, ok := ParseInteger(ref)
	if !ok {
		return Record{}, err
	}
	return r.repo.FindByID(ctx, KindPrimary, id)
}

// exists reports whether a record of kind has key equal to value.
func (r *Reconciler) exists(ctx context.Context, kind EntityKind, key, value string) (bool, error) {
	records, err := r.repo.FindAll(ctx, kind, key, value)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

func (r *Reconciler) handleExceptions(ctx context.Context, rc *RowContext, exceptions Exceptions) Stats {
	var stats Stats
	for _, ex := range exceptions {
		handler, ok := r.handlers.Lookup(ex.Keyword)
		if !ok {
			r.logger.Debug("no handler for exclusion column", "keyword", ex.Keyword, "header", ex.Header)
			stats = stats.Add(failedQuery())
			continue
		}
		stats = stats.Add(handler.HandleException(ctx, rc, ex.Raw))
	}
	return stats
}

// naturalKeyOf returns the first natural key of kind that attrs populates.
func naturalKeyOf(kind EntityKind, attrs Attributes) string {
	def, ok := Definition(kind)
	if !ok {
		return ""
	}
	for _, key := range def.NaturalKeys {
		if strings.TrimSpace(attrs[key]) != "" {
			return key
		}
	}
	return ""
}
