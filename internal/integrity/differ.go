package integrity

import (
	"fmt"
	"sort"

	"github.com/temirov/forensix/internal/baseline"
	"github.com/temirov/forensix/internal/digest"
)

const rootMismatchTemplateConstant = "baseline root %s differs from scanned root %s"

// Diff classifies every path of previous and current. It does not mutate either
// document and returns identical reports for identical inputs.
func Diff(previous baseline.Document, current baseline.Document) Report {
	report := Report{
		Timestamp:         current.Timestamp,
		MountPoint:        current.Root,
		Unchanged:         []string{},
		Modified:          []Modification{},
		Added:             []PathEntry{},
		Missing:           []PathEntry{},
		ReducedConfidence: []string{},
		ScanErrorCount:    len(current.ScanErrors),
		ReportErrors:      []string{},
	}

	if len(previous.Root) > 0 && len(current.Root) > 0 && previous.Root != current.Root {
		report.ReportErrors = append(report.ReportErrors, fmt.Sprintf(rootMismatchTemplateConstant, previous.Root, current.Root))
	}

	for _, path := range current.Paths() {
		currentRecord := current.Records[path]
		previousRecord, existed := previous.Records[path]
		if !existed {
			report.Added = append(report.Added, PathEntry{Path: path, Info: currentRecord})
			continue
		}

		comparison := compareRecords(previousRecord, currentRecord)
		if comparison.reducedConfidence {
			report.ReducedConfidence = append(report.ReducedConfidence, path)
		}
		if len(comparison.changes) == 0 {
			report.Unchanged = append(report.Unchanged, path)
			continue
		}
		report.Modified = append(report.Modified, Modification{
			Path:     path,
			Previous: previousRecord,
			Current:  currentRecord,
			Changes:  comparison.changes,
		})
	}

	for _, path := range previous.Paths() {
		if _, exists := current.Records[path]; exists {
			continue
		}
		report.Missing = append(report.Missing, PathEntry{Path: path, Info: previous.Records[path]})
	}

	sort.Strings(report.ReducedConfidence)
	return report
}

type recordComparison struct {
	changes           []Aspect
	reducedConfidence bool
}

// compareRecords checks size and every algorithm both records carry. An
// algorithm present on one side only lowers confidence without counting as a
// change; with no algorithm in common only the size is compared.
func compareRecords(previous baseline.FileRecord, current baseline.FileRecord) recordComparison {
	comparison := recordComparison{}

	if previous.Size != current.Size {
		comparison.changes = append(comparison.changes, AspectSize)
	}

	common := commonAlgorithms(previous, current)
	if len(common) < len(previous.Digests) || len(common) < len(current.Digests) || len(common) == 0 {
		comparison.reducedConfidence = true
	}

	for _, algorithm := range common {
		if previous.Digests[algorithm] != current.Digests[algorithm] {
			comparison.changes = append(comparison.changes, Aspect(algorithm))
		}
	}

	return comparison
}

func commonAlgorithms(previous baseline.FileRecord, current baseline.FileRecord) []digest.Algorithm {
	common := make([]digest.Algorithm, 0, len(previous.Digests))
	for algorithm := range previous.Digests {
		if _, shared := current.Digests[algorithm]; shared {
			common = append(common, algorithm)
		}
	}
	digest.SortAlgorithms(common)
	return common
}
