package snapshot

import (
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/temirov/forensix/internal/digest"
)

const (
	rootScanErrorTemplateConstant        = "cannot scan root %s: %v"
	rootScanErrorNoCauseTemplateConstant = "cannot scan root %s"
	rootNotDirectoryMessageConstant      = "not a directory"
)

// FileSystem exposes the filesystem operations the snapshotter depends on.
type FileSystem interface {
	Lstat(path string) (fs.FileInfo, error)
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Configuration captures the settings of a snapshotter.
type Configuration struct {
	Algorithms []digest.Algorithm
	Workers    int
	Clock      Clock
	Excludes   []string
	// SkipPaths are slash-separated paths relative to the root, skipped only on an exact match.
	SkipPaths  []string
}

// RootScanError reports a root that is missing, unreadable, or not a directory.
type RootScanError struct {
	Root  string
	Cause error
}

// Error describes the root failure.
func (scanError RootScanError) Error() string {
	if scanError.Cause == nil {
		return fmt.Sprintf(rootScanErrorNoCauseTemplateConstant, scanError.Root)
	}
	return fmt.Sprintf(rootScanErrorTemplateConstant, scanError.Root, scanError.Cause)
}

// Unwrap exposes the underlying cause.
func (scanError RootScanError) Unwrap() error {
	return scanError.Cause
}
