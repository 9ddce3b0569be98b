package integrity

import (
	"encoding/json"
	"time"

	"github.com/temirov/forensix/internal/baseline"
)

// Mode distinguishes a comparison against a stored baseline from a first run.
type Mode string

// Report modes.
const (
	ModeVerification    Mode = "verification"
	ModeBaselineCreated Mode = "baseline-created"
)

// Aspect names a property that differs between two records: "size" or an algorithm identifier.
type Aspect string

// AspectSize marks a size difference.
const AspectSize Aspect = "size"

// Modification describes a path whose content changed.
type Modification struct {
	Path     string
	Previous baseline.FileRecord
	Current  baseline.FileRecord
	Changes  []Aspect
}

// PathEntry pairs a path with the record that describes it.
type PathEntry struct {
	Path string
	Info baseline.FileRecord
}

// Summary holds classification counts.
type Summary struct {
	Total     int `json:"total_files"`
	Unchanged int `json:"unchanged_files"`
	Modified  int `json:"modified_files"`
	Added     int `json:"new_files"`
	Missing   int `json:"missing_files"`
}

// Report is the outcome of one verification run.
type Report struct {
	Mode              Mode
	Timestamp         time.Time
	MountPoint        string
	BaselineLocator   string
	Unchanged         []string
	Modified          []Modification
	Added             []PathEntry
	Missing           []PathEntry
	ReducedConfidence []string
	ScanErrorCount    int
	ReportErrors      []string
	// ConfigurationFile is the configuration file the run was loaded from, if any.
	ConfigurationFile string
}

// Summary derives the classification counts from the report lists.
func (report Report) Summary() Summary {
	summary := Summary{
		Unchanged: len(report.Unchanged),
		Modified:  len(report.Modified),
		Added:     len(report.Added),
		Missing:   len(report.Missing),
	}
	summary.Total = summary.Unchanged + summary.Modified + summary.Added + summary.Missing
	return summary
}

// HasChanges reports whether any path differs from the baseline.
func (report Report) HasChanges() bool {
	return len(report.Modified) > 0 || len(report.Added) > 0 || len(report.Missing) > 0
}

type modificationWire struct {
	Path     string              `json:"path"`
	Previous baseline.FileRecord `json:"previous"`
	Current  baseline.FileRecord `json:"current"`
	Changes  []Aspect            `json:"changes"`
}

type pathEntryWire struct {
	Path string              `json:"path"`
	Info baseline.FileRecord `json:"info"`
}

type reportFilesWire struct {
	Unchanged []string           `json:"unchanged"`
	Modified  []modificationWire `json:"modified"`
	Added     []pathEntryWire    `json:"new"`
	Missing   []pathEntryWire    `json:"missing"`
}

type reportWire struct {
	Timestamp         string          `json:"timestamp"`
	Mode              Mode            `json:"mode"`
	MountPoint        string          `json:"mount_point"`
	BaselineFile      string          `json:"baseline_file"`
	Files             reportFilesWire `json:"files"`
	Summary           Summary         `json:"summary"`
	ScanErrors        int             `json:"scan_errors"`
	ReducedConfidence []string        `json:"reduced_confidence"`
	Errors            []string        `json:"errors"`
	ConfigurationFile string          `json:"configuration_file,omitempty"`
}

// MarshalJSON encodes the report in its persisted form.
func (report Report) MarshalJSON() ([]byte, error) {
	modified := make([]modificationWire, 0, len(report.Modified))
	for _, modification := range report.Modified {
		modified = append(modified, modificationWire(modification))
	}

	return json.Marshal(reportWire{
		Timestamp:    report.Timestamp.UTC().Format(time.RFC3339Nano),
		Mode:         report.Mode,
		MountPoint:   report.MountPoint,
		BaselineFile: report.BaselineLocator,
		Files: reportFilesWire{
			Unchanged: nonNilStrings(report.Unchanged),
			Modified:  modified,
			Added:     pathEntriesWire(report.Added),
			Missing:   pathEntriesWire(report.Missing),
		},
		Summary:           report.Summary(),
		ScanErrors:        report.ScanErrorCount,
		ReducedConfidence: nonNilStrings(report.ReducedConfidence),
		Errors:            nonNilStrings(report.ReportErrors),
		ConfigurationFile: report.ConfigurationFile,
	})
}

func pathEntriesWire(entries []PathEntry) []pathEntryWire {
	wire := make([]pathEntryWire, 0, len(entries))
	for _, entry := range entries {
		wire = append(wire, pathEntryWire(entry))
	}
	return wire
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
