package recovery

import (
	"fmt"
	"strings"
)

const (
	listingErrorTemplateConstant = "cannot list deleted entries in %s: %v"
	regularFileTypeMarker        = "r"
	directoryTypeMarker          = "d"
	entryTypeSeparator           = "/"
)

// DeletedEntry is one deleted name reported by fls.
type DeletedEntry struct {
	// EntryType is the fls type column: the directory entry type and the
	// metadata type separated by a slash, for example "r/r".
	EntryType   string
	Address     string
	Inode       string
	Name        string
	Reallocated bool
}

// IsRegularFile reports whether either side of the type column marks a
// regular file and neither marks a directory.
func (entry DeletedEntry) IsRegularFile() bool {
	sides := strings.Split(entry.EntryType, entryTypeSeparator)
	regular := false
	for _, side := range sides {
		switch side {
		case directoryTypeMarker:
			return false
		case regularFileTypeMarker:
			regular = true
		}
	}
	return regular
}

// RecoveredFile records the outcome of extracting one deleted entry.
type RecoveredFile struct {
	Inode       string `json:"inode"`
	Address     string `json:"address"`
	Name        string `json:"filename"`
	OutputPath  string `json:"output_path"`
	Size        int64  `json:"size"`
	Reallocated bool   `json:"reallocated,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report is the outcome of one recovery run.
type Report struct {
	Source          string          `json:"source"`
	OutputDirectory string          `json:"output_directory"`
	RecoveredFiles  []RecoveredFile `json:"recovered_files"`
	Skipped         int             `json:"skipped_entries"`
}

// FailedCount returns the number of entries icat could not extract.
func (report Report) FailedCount() int {
	failed := 0
	for _, recovered := range report.RecoveredFiles {
		if len(recovered.Error) > 0 {
			failed++
		}
	}
	return failed
}

// ListingError reports that fls could not list the source.
type ListingError struct {
	Source string
	Cause  error
}

// Error describes the listing failure.
func (listingError ListingError) Error() string {
	return fmt.Sprintf(listingErrorTemplateConstant, listingError.Source, listingError.Cause)
}

// Unwrap exposes the underlying cause.
func (listingError ListingError) Unwrap() error {
	return listingError.Cause
}
