package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// RowContext carries the state of one dependent-create row through its
// exception handlers. A handler may create the dependent record itself;
// it then records it with SetDependent so the reconciler does not create
// it a second time.
type RowContext struct {
	Attrs  Attributes // attributes with the foreign key already resolved
	Parent Record     // resolved primary record

	dependent *Record
	created   bool
	failed    bool

	// option values attached during this row, per option type
	attached map[int64][]int64
}

// NewRowContext returns a context for a row whose parent has been resolved.
func NewRowContext(parent Record, attrs Attributes) *RowContext {
	return &RowContext{
		Attrs:    attrs,
		Parent:   parent,
		attached: make(map[int64][]int64),
	}
}

// Dependent returns the dependent record located or created so far.
func (rc *RowContext) Dependent() (Record, bool) {
	if rc.dependent == nil {
		return Record{}, false
	}
	return *rc.dependent, true
}

// SetDependent records the row's dependent record. created reports whether
// the handler persisted it (as opposed to finding an existing one).
func (rc *RowContext) SetDependent(rec Record, created bool) {
	rc.dependent = &rec
	rc.created = created
}

// Created reports whether a handler created the dependent record.
func (rc *RowContext) Created() bool {
	return rc.created
}

// MarkFailed records that creating the dependent record was attempted and
// rejected, so no later step retries it.
func (rc *RowContext) MarkFailed() {
	rc.failed = true
}

// Failed reports whether creating the dependent record was rejected.
func (rc *RowContext) Failed() bool {
	return rc.failed
}

// ExceptionHandler applies one exclusion cell to a row.
// It returns the outcome counts; errors are reported through FailedQueries.
type ExceptionHandler interface {
	HandleException(ctx context.Context, rc *RowContext, raw string) Stats
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(ctx context.Context, rc *RowContext, raw string) Stats

func (f ExceptionHandlerFunc) HandleException(ctx context.Context, rc *RowContext, raw string) Stats {
	return f(ctx, rc, raw)
}

// HandlerRegistry maps exclusion keywords to their handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ExceptionHandler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ExceptionHandler)}
}

// DefaultHandlers returns a registry with the option-type handler bound to
// DefaultExclusionKeyword.
func DefaultHandlers(repo Repository, logger *slog.Logger) *HandlerRegistry {
	h := NewHandlerRegistry()
	h.Register(DefaultExclusionKeyword, NewOptionTypeHandler(repo, logger))
	return h
}

// Register binds handler to keyword, case-folded the same way the
// Classifier folds headers. Panics if the keyword already has a handler.
func (h *HandlerRegistry) Register(keyword string, handler ExceptionHandler) {
	keyword = cases.Fold().String(strings.TrimSpace(keyword))

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.handlers[keyword]; exists {
		panic(fmt.Sprintf("exception handler already registered: %s", keyword))
	}
	h.handlers[keyword] = handler
}

// Lookup returns the handler for keyword.
func (h *HandlerRegistry) Lookup(keyword string) (ExceptionHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handler, ok := h.handlers[cases.Fold().String(keyword)]
	return handler, ok
}

// OptionTypeHandler expands option-type trees into option types on the
// parent product and option values on the variant.
//
// Repeating an option type within one row replaces the values attached
// earlier in that row for the type. Distinct types accumulate.
type OptionTypeHandler struct {
	repo   Repository
	logger *slog.Logger
}

// NewOptionTypeHandler returns the handler for option-type cells.
func NewOptionTypeHandler(repo Repository, logger *slog.Logger) *OptionTypeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionTypeHandler{repo: repo, logger: logger}
}

func (h *OptionTypeHandler) HandleException(ctx context.Context, rc *RowContext, raw string) Stats {
	var stats Stats

	if _, ok := rc.Dependent(); !ok && !rc.Failed() {
		if sku := rc.Attrs[naturalKeyOf(KindDependent, rc.Attrs)]; sku != "" {
			rec, err := h.repo.FindByNaturalKey(ctx, KindDependent, sku)
			switch {
			case err == nil:
				rc.SetDependent(rec, false)
			case !errors.Is(err, ErrNotFound):
				h.logger.Debug("variant lookup failed", "sku", sku, "error", err)
			}
		}
	}

	for spec, err := range ParseOptions(raw) {
		if err != nil {
			h.logger.Debug("skipping option tree", "error", err)
			stats = stats.Add(failedQuery())
			continue
		}

		optionType, err := h.repo.FindOrCreateOptionType(ctx, spec.Type, rc.Parent.ID)
		if err != nil {
			h.logger.Debug("option type failed", "option_type", spec.Type, "error", err)
			stats = stats.Add(failedQuery())
			continue
		}

		variant, ok := rc.Dependent()
		if !ok {
			if rc.Failed() {
				continue
			}
			variant, err = h.repo.Create(ctx, KindDependent, rc.Attrs)
			if err != nil {
				h.logger.Debug("variant create failed", "error", err)
				rc.MarkFailed()
				stats = stats.Add(failedQuery())
				continue
			}
			rc.SetDependent(variant, true)
			stats.Created++
		}

		stats = stats.Add(h.replaceValues(ctx, rc, variant, optionType, spec.Values))
	}

	return stats
}

// replaceValues attaches values to the variant, first detaching whatever
// this row attached earlier for the same option type.
func (h *OptionTypeHandler) replaceValues(ctx context.Context, rc *RowContext, variant Record, optionType OptionType, values []string) Stats {
	var stats Stats

	for _, prev := range rc.attached[optionType.ID] {
		if err := h.repo.DetachOptionValue(ctx, variant.ID, prev); err != nil {
			h.logger.Debug("detach option value failed", "option_value_id", prev, "error", err)
			stats = stats.Add(failedQuery())
		}
	}
	delete(rc.attached, optionType.ID)

	for _, name := range values {
		name = strings.TrimSpace(name)
		if name == "" {
			stats = stats.Add(failedQuery())
			continue
		}

		value, err := h.repo.FindOrCreateOptionValue(ctx, name, optionType.ID)
		if err != nil {
			h.logger.Debug("option value failed", "option_type", optionType.Name, "value", name, "error", err)
			stats = stats.Add(failedQuery())
			continue
		}
		if err := h.repo.AttachOptionValue(ctx, variant.ID, value.ID); err != nil {
			h.logger.Debug("attach option value failed", "option_value_id", value.ID, "error", err)
			stats = stats.Add(failedQuery())
			continue
		}
		rc.attached[optionType.ID] = append(rc.attached[optionType.ID], value.ID)
	}

	return stats
}
