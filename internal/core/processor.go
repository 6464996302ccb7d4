package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/datasheet/internal/sheet"
)

// Sheet positions in a datasheet. The primary sheet always runs first
// because dependent rows resolve their product references against it.
const (
	PrimarySheet   = 0
	DependentSheet = 1
)

// DocumentOpener loads the document stored for a run.
type DocumentOpener interface {
	Open(path string) (*sheet.Document, error)
}

// OpenerFunc adapts a function to DocumentOpener.
type OpenerFunc func(path string) (*sheet.Document, error)

func (f OpenerFunc) Open(path string) (*sheet.Document, error) {
	return f(path)
}

// ProcessorConfig holds the optional collaborators of a Processor.
// Zero values fall back to defaults.
type ProcessorConfig struct {
	Keywords []string         // exclusion keywords (default: option_type)
	Handlers *HandlerRegistry // keyword handlers (default: DefaultHandlers)
	Opener   DocumentOpener   // document loader (default: sheet.Open)
	Logger   *slog.Logger
	Now      func() time.Time
}

// Processor runs a datasheet through classification, dispatch and
// reconciliation, then records the run summary.
//
// Rows are processed one at a time in document order. A Processor holds no
// per-run state and may be reused across runs.
type Processor struct {
	runs       RunStore
	opener     DocumentOpener
	classifier *Classifier
	reconciler *Reconciler
	schema     Schema
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor returns a processor writing to repo and recording runs in runs.
func NewProcessor(repo Repository, runs RunStore, cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handlers := cfg.Handlers
	if handlers == nil {
		handlers = DefaultHandlers(repo, logger)
	}
	opener := cfg.Opener
	if opener == nil {
		opener = OpenerFunc(sheet.Open)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Processor{
		runs:       runs,
		opener:     opener,
		classifier: NewClassifier(cfg.Keywords...),
		reconciler: NewReconciler(repo, handlers, logger),
		schema:     NewSchema(repo),
		logger:     logger,
		now:        now,
	}
}

// Keywords returns the exclusion keywords the processor classifies by.
func (p *Processor) Keywords() []string {
	return p.classifier.Keywords()
}

// Process opens the run's document, reconciles both sheets and writes the
// summary. If the document cannot be opened the run is left untouched and
// the returned error wraps ErrDocumentOpen. If ctx is cancelled mid-run the
// summary is not written.
func (p *Processor) Process(ctx context.Context, run Run) (Summary, error) {
	logger := p.logger.With("run_id", run.ID, "file", run.FileName)

	doc, err := p.opener.Open(run.Path)
	if err != nil {
		logger.Warn("datasheet open failed", "error", err)
		return Summary{}, fmt.Errorf("%w: %w", ErrDocumentOpen, err)
	}

	start := p.now()
	stats, err := p.ProcessDocument(ctx, doc)
	if err != nil {
		logger.Warn("datasheet processing interrupted", "error", err, "stats", stats.String())
		return Summary{}, fmt.Errorf("process run %s: %w", run.ID, err)
	}

	summary := Summary{ProcessedAt: p.now(), Stats: stats}
	if err := p.runs.CompleteRun(ctx, run.ID, summary); err != nil {
		return summary, fmt.Errorf("complete run %s: %w", run.ID, err)
	}

	logger.Info("datasheet processed",
		"duration_ms", summary.ProcessedAt.Sub(start).Milliseconds(),
		"matched", stats.Matched,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"failed_queries", stats.FailedQueries,
		"skipped", stats.Skipped,
		"created", stats.Created,
	)
	return summary, nil
}

// ProcessDocument reconciles the primary sheet and then, if present, the
// dependent sheet. It returns early only when ctx is cancelled.
func (p *Processor) ProcessDocument(ctx context.Context, doc *sheet.Document) (Stats, error) {
	var stats Stats

	for _, idx := range []int{PrimarySheet, DependentSheet} {
		s, ok := doc.Sheet(idx)
		if !ok {
			break
		}
		delta, err := p.ProcessSheet(ctx, s)
		stats = stats.Add(delta)
		if err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// ProcessSheet reconciles every data row of s in order. Row failures are
// counted, never returned; the only error is ctx cancellation.
func (p *Processor) ProcessSheet(ctx context.Context, s *sheet.Sheet) (Stats, error) {
	var stats Stats
	header := s.Header()
	first, last := s.Columns()
	tags := p.classifier.ClassifyHeaders(header, first, last)
	logger := p.logger.With("sheet", s.Name)

	for i := 1; i < s.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats = stats.Add(p.processRow(ctx, logger.With("row", i+1), tags, header, s.Row(i)))
	}

	logger.Debug("sheet processed", "rows", max(s.Len()-1, 0), "stats", stats.String())
	return stats, nil
}

// processRow dispatches a single row. A panic in any collaborator is
// contained here and counted as a failed query.
func (p *Processor) processRow(ctx context.Context, logger *slog.Logger, tags []ColumnTag, header, row sheet.Row) (delta Stats) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing row", "panic", r)
			delta = failedQuery()
		}
	}()

	attrs, exceptions := SplitRow(tags, row)
	if len(attrs) == 0 && len(exceptions) == 0 {
		return Stats{}
	}

	action := Dispatch(p.schema, header, row)
	logger.Debug("row dispatched", "action", action.String())

	switch action {
	case ActionCreatePrimary:
		return p.reconciler.CreatePrimary(ctx, attrs).Add(unconsumed(logger, action, exceptions))
	case ActionCreateDependent:
		return p.reconciler.CreateDependent(ctx, attrs, exceptions)
	case ActionUpdatePrimary:
		delta = p.reconciler.BulkUpdate(ctx, KindPrimary, headerName(header.At(0)), row.At(0).Text, attrs)
		return delta.Add(unconsumed(logger, action, exceptions))
	case ActionUpdateDependent:
		delta = p.reconciler.BulkUpdate(ctx, KindDependent, headerName(header.At(0)), row.At(0).Text, attrs)
		return delta.Add(unconsumed(logger, action, exceptions))
	default:
		logger.Debug("invalid row", "key", headerName(header.At(0)))
		return failedQuery()
	}
}

// unconsumed counts exclusion cells on rows whose action has no handler
// step. Only dependent-create rows run exception handlers.
func unconsumed(logger *slog.Logger, action Action, exceptions Exceptions) Stats {
	var stats Stats
	for _, ex := range exceptions {
		logger.Debug("exclusion cell ignored", "action", action.String(), "keyword", ex.Keyword, "header", ex.Header)
		stats = stats.Add(failedQuery())
	}
	return stats
}
