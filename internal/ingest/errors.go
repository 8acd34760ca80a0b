package ingest

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	// ErrInput marks failures that abort an import before any row is processed.
	ErrInput = errors.New("import input error")
	// ErrMissingIdentity is the cause of a RowError for rows without sbd.
	ErrMissingIdentity = errors.New("missing " + identityColumn)
)

// InputError is fatal: the source could not be read or lacks the identity column.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInput }

// RowError is recovered: the row is counted as an error and skipped.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row at line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// FlushError is recovered at batch granularity: every row of the batch is
// counted as an error.
type FlushError struct {
	Size int
	Err  error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush of %d rows failed: %v", e.Size, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
