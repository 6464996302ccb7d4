package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped run not found",
			err:         fmt.Errorf("get run: %w", ErrRunNotFound),
			wantCode:    "RUN001",
			wantMessage: "Datasheet not found",
		},
		{
			name:        "busy run",
			err:         fmt.Errorf("%w: abc", ErrRunBusy),
			wantCode:    "RUN003",
			wantMessage: "Datasheet is already being processed",
		},
		{
			name:        "limiter saturated",
			err:         ErrTooManyRuns,
			wantCode:    "RUN004",
			wantMessage: "System is busy processing other datasheets",
		},
		{
			name:        "document open failure",
			err:         fmt.Errorf("%w: %w", ErrDocumentOpen, errors.New("zip: not a valid zip file")),
			wantCode:    "RUN005",
			wantMessage: "Datasheet could not be opened",
		},
		{
			name:        "validation error unwraps to sentinel",
			err:         ValidationError{Field: "price", Value: "abc", Message: "invalid number format"},
			wantCode:    "VAL001",
			wantMessage: "A value does not match its column",
		},
		{
			name:        "option syntax error",
			err:         &OptionSyntaxError{Tree: "Color", Reason: "missing ':'"},
			wantCode:    "VAL002",
			wantMessage: "An option type cell is malformed",
		},
		{
			name:        "context cancelled",
			err:         fmt.Errorf("process run: %w", context.Canceled),
			wantCode:    "RUN006",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "postgres duplicate key",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"variants_sku_key\""),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "sqlite unique constraint",
			err:         errors.New("constraint failed: UNIQUE constraint failed: option_types.name (2067)"),
			wantCode:    "DB002",
			wantMessage: "This value must be unique but already exists",
		},
		{
			name:        "foreign key",
			err:         errors.New("FOREIGN KEY constraint failed"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrRunProcessed)

	expected := "Datasheet has already been processed (Code: RUN002). Upload the file again to re-run it"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"sentinel is user facing", ErrEmptyFile, true},
		{"driver pattern is user facing", errors.New("database is locked"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
