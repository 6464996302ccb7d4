package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Codes are grouped by category:
//
//	DB001-DB099    database constraints and connectivity
//	VAL001-VAL099  cell and attribute validation
//	FILE001-FILE099 uploaded file handling
//	RUN001-RUN099  datasheet run lifecycle
//	ERR000         fallback; check the logs for the original error
//
// Sentinel errors are matched first with errors.Is. Anything else falls
// through to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order before any string pattern.
var sentinelMessages = []sentinelMessage{
	{ErrRunNotFound, UserMessage{
		Message: "Datasheet not found",
		Action:  "It may have been deleted. Upload the file again",
		Code:    "RUN001",
	}},
	{ErrRunProcessed, UserMessage{
		Message: "Datasheet has already been processed",
		Action:  "Upload the file again to re-run it",
		Code:    "RUN002",
	}},
	{ErrRunBusy, UserMessage{
		Message: "Datasheet is already being processed",
		Action:  "Wait for the current run to finish",
		Code:    "RUN003",
	}},
	{ErrTooManyRuns, UserMessage{
		Message: "System is busy processing other datasheets",
		Action:  "Please wait a moment and try again",
		Code:    "RUN004",
	}},
	{ErrDocumentOpen, UserMessage{
		Message: "Datasheet could not be opened",
		Action:  "Check that the file is a valid spreadsheet and upload it again",
		Code:    "RUN005",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the datasheet into smaller files",
		Code:    "FILE001",
	}},
	{ErrUnsupportedFile, UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload an .xlsx, .csv or .tsv file, optionally compressed",
		Code:    "FILE002",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a datasheet with a header row and data rows",
		Code:    "FILE003",
	}},
	{ErrValidation, UserMessage{
		Message: "A value does not match its column",
		Action:  "Check the column headers and cell formats",
		Code:    "VAL001",
	}},
	{ErrMalformedOption, UserMessage{
		Message: "An option type cell is malformed",
		Action:  "Write option types as Name:value1,value2",
		Code:    "VAL002",
	}},
	{ErrNotFound, UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure products are listed before their variants",
		Code:    "VAL003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN006",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller datasheet or try again later",
		Code:    "RUN007",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers driver errors from both PostgreSQL and SQLite.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Review the datasheet for duplicate SKUs or names",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Review the datasheet for duplicate SKUs or names",
		Code:    "DB002",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure products are listed before their variants",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller datasheet or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"database is locked", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Select a datasheet to upload",
		Code:    "FILE004",
	}},
	{"unreadable", UserMessage{
		Message: "File could not be read",
		Action:  "Save the datasheet again as .xlsx or UTF-8 .csv",
		Code:    "FILE005",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("process: %w", ErrRunBusy))
//	// msg.Code == "RUN003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
