// Package output renders run results as CSV files or strings and optionally
// persists them to SQLite.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// WriterType selects which artifact a Writer produces.
type WriterType int

const (
	InputEcho WriterType = iota
	GeneralOutput
	HistoryOutput
	CostOutput
	UtilityOutput
	TotalsOutput
)

// WriterTypes lists every writer type in output order.
func WriterTypes() []WriterType {
	return []WriterType{InputEcho, GeneralOutput, HistoryOutput, CostOutput, UtilityOutput, TotalsOutput}
}

func (w WriterType) String() string {
	switch w {
	case InputEcho:
		return "input_echo"
	case GeneralOutput:
		return "general"
	case HistoryOutput:
		return "history"
	case CostOutput:
		return "cost"
	case UtilityOutput:
		return "utility"
	case TotalsOutput:
		return "totals"
	}
	return fmt.Sprintf("WriterType(%d)", int(w))
}

// OutputType selects where rendered artifacts go.
type OutputType int

const (
	// StringOutput returns the rendered artifacts to the caller.
	StringOutput OutputType = iota
	// FileOutput writes one file per artifact into the writer's directory.
	FileOutput
)

func (o OutputType) String() string {
	switch o {
	case StringOutput:
		return "string"
	case FileOutput:
		return "file"
	}
	return fmt.Sprintf("OutputType(%d)", int(o))
}

// CreationStatus reports the outcome of creating an output location.
type CreationStatus int

const (
	Success CreationStatus = iota
	Exists
	NotCreated
	Error
)

func (c CreationStatus) String() string {
	switch c {
	case Success:
		return "success"
	case Exists:
		return "exists"
	case NotCreated:
		return "not_created"
	case Error:
		return "error"
	}
	return fmt.Sprintf("CreationStatus(%d)", int(c))
}

// EnsureDirectory creates path if it is missing. An empty path is NotCreated;
// a path naming a regular file is Error.
func EnsureDirectory(path string) (CreationStatus, error) {
	if path == "" {
		return NotCreated, nil
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return Exists, nil
	case err == nil:
		return Error, fmt.Errorf("%s exists and is not a directory", path)
	case !errors.Is(err, fs.ErrNotExist):
		return Error, fmt.Errorf("checking %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return Error, fmt.Errorf("creating %s: %w", path, err)
	}
	return Success, nil
}
