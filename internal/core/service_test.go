package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestService(t *testing.T, repo *memRepo, runs *memRuns, maxSize int64) *Service {
	t.Helper()

	p := NewProcessor(repo, runs, ProcessorConfig{Logger: quietLogger()})
	svc, err := NewService(runs, p, ServiceConfig{
		UploadsDir:  t.TempDir(),
		MaxFileSize: maxSize,
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc
}

func TestService_SubmitAndProcess(t *testing.T) {
	repo := newMemRepo()
	runs := newMemRuns()
	svc := newTestService(t, repo, runs, 0)
	ctx := context.Background()

	csv := "id,name,sku\n,Widget,W-1\n,Gadget,G-1\n"
	run, err := svc.Submit(ctx, "../../products.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if run.FileName != "products.csv" {
		t.Errorf("FileName = %q, want products.csv", run.FileName)
	}
	if filepath.Base(filepath.Dir(run.Path)) != run.ID {
		t.Errorf("Path = %q, want it under the run id", run.Path)
	}
	if data, err := os.ReadFile(run.Path); err != nil || string(data) != csv {
		t.Errorf("stored file = %q, %v", data, err)
	}

	summary, err := svc.Process(ctx, run.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if summary.Created != 2 {
		t.Errorf("summary = %s", summary.Stats)
	}

	if _, err := svc.Process(ctx, run.ID); !errors.Is(err, ErrRunProcessed) {
		t.Errorf("second Process() error = %v, want ErrRunProcessed", err)
	}
}

func TestService_SubmitRejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
	}{
		{"unsupported extension", "products.pdf", "x", ErrUnsupportedFile},
		{"no name", "", "x", ErrUnsupportedFile},
		{"empty file", "products.csv", "", ErrEmptyFile},
		{"too large", "products.csv", strings.Repeat("a", 65), ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := newMemRuns()
			svc := newTestService(t, newMemRepo(), runs, 64)

			_, err := svc.Submit(context.Background(), tt.file, strings.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if all, _ := runs.ListRuns(context.Background(), true); len(all) != 0 {
				t.Errorf("rejected upload created %d runs", len(all))
			}
		})
	}
}

func TestService_ProcessUnreadableLeavesRunPending(t *testing.T) {
	runs := newMemRuns()
	svc := newTestService(t, newMemRepo(), runs, 0)
	ctx := context.Background()

	run, err := svc.Submit(ctx, "broken.xlsx", strings.NewReader("not a zip archive"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if _, err := svc.Process(ctx, run.ID); !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("Process() error = %v, want ErrDocumentOpen", err)
	}
	got, err := svc.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Processed() {
		t.Error("unreadable run was marked processed")
	}
}

func TestService_Delete(t *testing.T) {
	runs := newMemRuns()
	svc := newTestService(t, newMemRepo(), runs, 0)
	ctx := context.Background()

	run, err := svc.Submit(ctx, "products.csv", strings.NewReader("id,name\n,Widget\n"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if err := svc.Delete(ctx, run.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := svc.Get(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() after delete = %v, want ErrRunNotFound", err)
	}
	if _, err := svc.Process(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Process() after delete = %v, want ErrRunNotFound", err)
	}
	if err := svc.Delete(ctx, run.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second Delete() = %v, want ErrRunNotFound", err)
	}

	visible, _ := svc.List(ctx, false)
	all, _ := svc.List(ctx, true)
	if len(visible) != 0 || len(all) != 1 {
		t.Errorf("List() visible=%d all=%d, want 0 and 1", len(visible), len(all))
	}
	if _, err := os.Stat(run.Path); err != nil {
		t.Errorf("stored file removed on soft delete: %v", err)
	}
}

func TestService_GetInvalidID(t *testing.T) {
	svc := newTestService(t, newMemRepo(), newMemRuns(), 0)

	if _, err := svc.Get(context.Background(), "not-a-uuid"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() error = %v, want ErrRunNotFound", err)
	}
}

func TestService_ProcessBusy(t *testing.T) {
	runs := newMemRuns()
	svc := newTestService(t, newMemRepo(), runs, 0)
	ctx := context.Background()

	run, err := svc.Submit(ctx, "products.csv", strings.NewReader("id,name\n,Widget\n"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if !svc.claim(run.ID) {
		t.Fatal("claim() failed on idle run")
	}
	if _, err := svc.Process(ctx, run.ID); !errors.Is(err, ErrRunBusy) {
		t.Errorf("Process() error = %v, want ErrRunBusy", err)
	}
	svc.unclaim(run.ID)

	if _, err := svc.Process(ctx, run.ID); err != nil {
		t.Errorf("Process() after release error: %v", err)
	}
}
