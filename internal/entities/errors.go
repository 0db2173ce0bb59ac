package entities

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a recoverable per-file failure.
type ErrorKind int

const (
	// KindTraversal: a root or subdirectory was missing or unreadable.
	KindTraversal ErrorKind = iota
	// KindStatRace: the file vanished or became unreadable before its size was read.
	KindStatRace
	// KindHashRead: the file could not be opened or read while hashing.
	KindHashRead
)

var (
	ErrTraversal = errors.New("traversal error")
	ErrStatRace  = errors.New("stat race")
	ErrHashRead  = errors.New("hash read error")
)

func (k ErrorKind) String() string {
	switch k {
	case KindTraversal:
		return "traversal"
	case KindStatRace:
		return "stat_race"
	case KindHashRead:
		return "hash_read"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTraversal:
		return ErrTraversal
	case KindStatRace:
		return ErrStatRace
	default:
		return ErrHashRead
	}
}

// FileError is a non-fatal failure tied to one path. The scan continues
// past it and the path is left out of every bucket.
type FileError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func NewFileError(kind ErrorKind, path string, err error) *FileError {
	return &FileError{Kind: kind, Path: path, Err: err}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *FileError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
