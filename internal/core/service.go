package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/datasheet/internal/sheet"
)

// DefaultMaxFileSize is the upload limit used when none is configured (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// ServiceConfig configures a Service.
type ServiceConfig struct {
	UploadsDir    string        // root directory for stored datasheets
	MaxFileSize   int64         // maximum upload size in bytes
	MaxConcurrent int           // maximum datasheets processed at once
	MaxWait       time.Duration // how long to wait for a processing slot
}

// Service is the entry point for datasheet runs: storing uploads,
// processing them and managing their lifecycle.
type Service struct {
	runs        RunStore
	processor   *Processor
	limiter     *RunLimiter
	uploadsDir  string
	maxFileSize int64

	mu   sync.Mutex
	busy map[string]bool
}

// NewService creates a Service and ensures the uploads directory exists.
func NewService(runs RunStore, processor *Processor, cfg ServiceConfig) (*Service, error) {
	if cfg.UploadsDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		cfg.UploadsDir = filepath.Join(wd, "uploads", "product_datasheets")
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	return &Service{
		runs:        runs,
		processor:   processor,
		limiter:     NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		uploadsDir:  cfg.UploadsDir,
		maxFileSize: cfg.MaxFileSize,
		busy:        make(map[string]bool),
	}, nil
}

// Submit stores an uploaded datasheet under <uploads>/<run id>/<name> and
// records a pending run for it.
func (s *Service) Submit(ctx context.Context, fileName string, r io.Reader) (Run, error) {
	base := filepath.Base(fileName)
	if base == "." || base == string(filepath.Separator) || !sheet.Supported(base) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, fileName)
	}

	id := uuid.New().String()
	dir := filepath.Join(s.uploadsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(dir, base)

	if err := s.store(path, r); err != nil {
		_ = os.RemoveAll(dir)
		return Run{}, err
	}

	run, err := s.runs.CreateRun(ctx, Run{
		ID:        id,
		FileName:  base,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	slog.Info("datasheet submitted", "run_id", run.ID, "file", base)
	return run, nil
}

// SubmitFile submits a datasheet from the local filesystem.
func (s *Service) SubmitFile(ctx context.Context, path string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return s.Submit(ctx, filepath.Base(path), f)
}

func (s *Service) store(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxFileSize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	case n > s.maxFileSize:
		return fmt.Errorf("%w: exceeds %dMB limit", ErrFileTooLarge, s.maxFileSize/(1024*1024))
	case n == 0:
		return ErrEmptyFile
	}
	return nil
}

// Process runs a pending datasheet. Deleted runs are not found, processed
// runs are rejected, and a run cannot be processed twice concurrently.
func (s *Service) Process(ctx context.Context, id string) (Summary, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	if run.Processed() {
		return Summary{}, fmt.Errorf("%w: %s", ErrRunProcessed, id)
	}

	if !s.claim(id) {
		return Summary{}, fmt.Errorf("%w: %s", ErrRunBusy, id)
	}
	defer s.unclaim(id)

	if err := s.limiter.Acquire(ctx); err != nil {
		return Summary{}, err
	}
	defer s.limiter.Release()

	return s.processor.Process(ctx, run)
}

// Get returns a run that has not been soft-deleted.
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return Run{}, err
	}
	if run.Deleted() {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// List returns runs newest first. Soft-deleted runs are included only
// when includeDeleted is set.
func (s *Service) List(ctx context.Context, includeDeleted bool) ([]Run, error) {
	return s.runs.ListRuns(ctx, includeDeleted)
}

// Delete soft-deletes a run. The stored file is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.runs.SoftDeleteRun(ctx, id); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return err
		}
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}

// ActiveRuns returns the number of datasheets currently processing.
func (s *Service) ActiveRuns() int {
	return s.limiter.ActiveCount()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[id] {
		return false
	}
	s.busy[id] = true
	return true
}

func (s *Service) unclaim(id string) {
	s.mu.Lock()
	delete(s.busy, id)
	s.mu.Unlock()
}
