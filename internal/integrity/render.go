package integrity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	headerVerificationTemplate    = "Verification of %s against %s\n"
	headerBaselineCreatedTemplate = "First baseline for %s recorded at %s\n"
	summaryLineTemplate           = "  %-10s %d\n"
	sectionHeaderTemplate         = "%s:\n"
	pathLineTemplate              = "  %s\n"
	modifiedLineTemplate          = "  %s (%s)\n"
	reportErrorLineTemplate       = "  %s\n"
	summaryTotalLabel             = "total"
	summaryUnchangedLabel         = "unchanged"
	summaryModifiedLabel          = "modified"
	summaryAddedLabel             = "new"
	summaryMissingLabel           = "missing"
	scanErrorsLineTemplate        = "Scan errors: %d file(s) could not be read\n"
	modifiedSectionTitle          = "Modified"
	addedSectionTitle             = "New"
	missingSectionTitle           = "Missing"
	reducedConfidenceSectionTitle = "Compared with fewer algorithms"
	reportErrorsSectionTitle      = "Errors"
	changeSeparator               = ", "
	reportIndentConstant          = "  "
)

type palette struct {
	neutral func(a ...any) string
	good    func(a ...any) string
	warning func(a ...any) string
	alert   func(a ...any) string
}

func newPalette(colorize bool) palette {
	build := func(attributes ...color.Attribute) func(a ...any) string {
		printer := color.New(attributes...)
		if colorize {
			printer.EnableColor()
		} else {
			printer.DisableColor()
		}
		return printer.SprintFunc()
	}
	return palette{
		neutral: build(color.Bold),
		good:    build(color.FgGreen),
		warning: build(color.FgYellow),
		alert:   build(color.FgRed, color.Bold),
	}
}

// IsTerminal reports whether writer is a terminal that accepts color sequences.
func IsTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// RenderReport writes summary counts and path lists. A baseline-created report is
// presented as the first baseline rather than as a list of new files.
func RenderReport(writer io.Writer, report Report, colorize bool) error {
	colors := newPalette(colorize)
	summary := report.Summary()
	var builder strings.Builder

	if report.Mode == ModeBaselineCreated {
		fmt.Fprintf(&builder, headerBaselineCreatedTemplate, report.MountPoint, report.BaselineLocator)
		fmt.Fprintf(&builder, summaryLineTemplate, summaryTotalLabel, summary.Total)
		writeScanErrors(&builder, colors, report.ScanErrorCount)
		writeReportErrors(&builder, colors, report.ReportErrors)
		_, writeError := io.WriteString(writer, builder.String())
		return writeError
	}

	fmt.Fprintf(&builder, headerVerificationTemplate, report.MountPoint, report.BaselineLocator)
	fmt.Fprintf(&builder, summaryLineTemplate, summaryTotalLabel, summary.Total)
	fmt.Fprint(&builder, colors.good(fmt.Sprintf(summaryLineTemplate, summaryUnchangedLabel, summary.Unchanged)))
	fmt.Fprint(&builder, countColor(colors, summary.Modified, colors.alert)(fmt.Sprintf(summaryLineTemplate, summaryModifiedLabel, summary.Modified)))
	fmt.Fprint(&builder, countColor(colors, summary.Added, colors.warning)(fmt.Sprintf(summaryLineTemplate, summaryAddedLabel, summary.Added)))
	fmt.Fprint(&builder, countColor(colors, summary.Missing, colors.alert)(fmt.Sprintf(summaryLineTemplate, summaryMissingLabel, summary.Missing)))
	writeScanErrors(&builder, colors, report.ScanErrorCount)

	if len(report.Modified) > 0 {
		fmt.Fprintf(&builder, sectionHeaderTemplate, colors.neutral(modifiedSectionTitle))
		for _, modification := range report.Modified {
			changes := make([]string, 0, len(modification.Changes))
			for _, change := range modification.Changes {
				changes = append(changes, string(change))
			}
			fmt.Fprintf(&builder, modifiedLineTemplate, modification.Path, strings.Join(changes, changeSeparator))
		}
	}
	writePathEntries(&builder, colors, addedSectionTitle, report.Added)
	writePathEntries(&builder, colors, missingSectionTitle, report.Missing)

	if len(report.ReducedConfidence) > 0 {
		fmt.Fprintf(&builder, sectionHeaderTemplate, colors.neutral(reducedConfidenceSectionTitle))
		for _, path := range report.ReducedConfidence {
			fmt.Fprintf(&builder, pathLineTemplate, path)
		}
	}
	writeReportErrors(&builder, colors, report.ReportErrors)

	_, writeError := io.WriteString(writer, builder.String())
	return writeError
}

// WriteReport encodes the report as indented JSON.
func WriteReport(writer io.Writer, report Report) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", reportIndentConstant)
	return encoder.Encode(report)
}

func countColor(colors palette, count int, highlight func(a ...any) string) func(a ...any) string {
	if count == 0 {
		return colors.good
	}
	return highlight
}

func writePathEntries(builder *strings.Builder, colors palette, title string, entries []PathEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(builder, sectionHeaderTemplate, colors.neutral(title))
	for _, entry := range entries {
		fmt.Fprintf(builder, pathLineTemplate, entry.Path)
	}
}

func writeScanErrors(builder *strings.Builder, colors palette, scanErrorCount int) {
	line := fmt.Sprintf(scanErrorsLineTemplate, scanErrorCount)
	if scanErrorCount > 0 {
		line = colors.warning(line)
	}
	fmt.Fprint(builder, line)
}

func writeReportErrors(builder *strings.Builder, colors palette, reportErrors []string) {
	if len(reportErrors) == 0 {
		return
	}
	fmt.Fprintf(builder, sectionHeaderTemplate, colors.alert(reportErrorsSectionTitle))
	for _, reportError := range reportErrors {
		fmt.Fprintf(builder, reportErrorLineTemplate, reportError)
	}
}
