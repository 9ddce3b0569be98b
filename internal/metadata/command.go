package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/filesystem"
)

const (
	// DefaultOutputFile is where the metadata report is written when no path is given.
	DefaultOutputFile = "forensicx_output/metadata.json"

	metadataCommandUseConstant       = "metadata <root>"
	metadataCommandShortDescription  = "Extract file and filesystem metadata"
	metadataCommandLongDescription   = "metadata records type, inode, mode, access, ownership and timestamps for every entry below root without following symbolic links, plus statfs statistics for the filesystem holding root."
	outputFlagName                   = "output"
	outputFlagDescription            = "Write the JSON report to this file; empty disables the file"
	jsonFlagName                     = "json"
	jsonFlagDescription              = "Print the report as JSON"
	summaryTemplateConstant          = "Extracted metadata for %d entries under %s\n"
	failedTemplateConstant           = "Metadata unavailable for %d entries\n"
	statisticsUnavailableTemplate    = "Filesystem statistics unavailable: %s\n"
	statisticsHeaderConstant         = "BLOCK SIZE\tTOTAL\tFREE\tAVAILABLE\tINODES\tFREE INODES\n"
	statisticsRowTemplateConstant    = "%d\t%d\t%d\t%d\t%d\t%d\n"
	errorsHeaderConstant             = "Errors:\n"
	errorLineTemplateConstant        = "  %s\n"
	savedTemplateConstant            = "Metadata saved to %s\n"
	writeReportErrorTemplateConstant = "unable to write metadata report %s: %w"
	jsonIndentConstant               = "  "
	tableMinimumWidthConstant        = 0
	tableTabWidthConstant            = 4
	tablePaddingConstant             = 2
	tablePaddingCharacterConstant    = ' '
	outputDirectoryPermissions       = 0o755
	currentDirectoryPathConstant     = "."
	missingCollectorMessageConstant  = "metadata collector not configured"
	metadataCommandArgumentCount     = 1
)

var errMissingCollector = errors.New(missingCollectorMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Extractor collects a metadata report for a root directory.
type Extractor interface {
	Collect(executionContext context.Context, root string) (Report, error)
}

// ExtractorProvider builds an Extractor from the command logger.
type ExtractorProvider func(logger *zap.Logger) Extractor

// OutputFileSystem creates the report file and its directory.
type OutputFileSystem interface {
	MkdirAll(path string, permissions fs.FileMode) error
	Create(path string) (io.WriteCloser, error)
}

// CommandBuilder assembles the metadata cobra command.
type CommandBuilder struct {
	LoggerProvider    LoggerProvider
	ExtractorProvider ExtractorProvider
	FileSystem        OutputFileSystem
}

// Build constructs the metadata command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   metadataCommandUseConstant,
		Short: metadataCommandShortDescription,
		Long:  metadataCommandLongDescription,
		Args:  cobra.ExactArgs(metadataCommandArgumentCount),
		RunE:  builder.run,
	}
	command.Flags().String(outputFlagName, DefaultOutputFile, outputFlagDescription)
	command.Flags().Bool(jsonFlagName, false, jsonFlagDescription)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	if builder.ExtractorProvider == nil {
		return errMissingCollector
	}
	extractor := builder.ExtractorProvider(logger)

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	report, collectError := extractor.Collect(executionContext, arguments[0])
	if collectError != nil {
		return collectError
	}

	outputPath, _ := command.Flags().GetString(outputFlagName)
	if len(outputPath) > 0 {
		if writeError := builder.writeReportFile(outputPath, report); writeError != nil {
			return fmt.Errorf(writeReportErrorTemplateConstant, outputPath, writeError)
		}
	}

	asJSON, _ := command.Flags().GetBool(jsonFlagName)
	if asJSON {
		encoder := json.NewEncoder(command.OutOrStdout())
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(report)
	}
	if renderError := renderSummary(command.OutOrStdout(), report); renderError != nil {
		return renderError
	}
	if len(outputPath) > 0 {
		_, printError := fmt.Fprintf(command.OutOrStdout(), savedTemplateConstant, outputPath)
		return printError
	}
	return nil
}

func (builder *CommandBuilder) writeReportFile(outputPath string, report Report) error {
	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if directory := filepath.Dir(outputPath); directory != currentDirectoryPathConstant {
		if mkdirError := fileSystem.MkdirAll(directory, outputDirectoryPermissions); mkdirError != nil {
			return mkdirError
		}
	}
	reportFile, createError := fileSystem.Create(outputPath)
	if createError != nil {
		return createError
	}
	encoder := json.NewEncoder(reportFile)
	encoder.SetIndent("", jsonIndentConstant)
	if encodeError := encoder.Encode(report); encodeError != nil {
		_ = reportFile.Close()
		return encodeError
	}
	return reportFile.Close()
}

func renderSummary(output io.Writer, report Report) error {
	fmt.Fprintf(output, summaryTemplateConstant, len(report.Files), report.Root)
	if failed := report.FailedCount(); failed > 0 {
		fmt.Fprintf(output, failedTemplateConstant, failed)
	}

	if statistics := report.FilesystemInfo.Statistics; statistics != nil {
		writer := tabwriter.NewWriter(
			output,
			tableMinimumWidthConstant,
			tableTabWidthConstant,
			tablePaddingConstant,
			tablePaddingCharacterConstant,
			0,
		)
		fmt.Fprint(writer, statisticsHeaderConstant)
		fmt.Fprintf(writer, statisticsRowTemplateConstant,
			statistics.BlockSize,
			statistics.TotalSpace,
			statistics.FreeSpace,
			statistics.AvailableSpace,
			statistics.TotalInodes,
			statistics.FreeInodes,
		)
		if flushError := writer.Flush(); flushError != nil {
			return flushError
		}
	} else if len(report.FilesystemInfo.Error) > 0 {
		fmt.Fprintf(output, statisticsUnavailableTemplate, report.FilesystemInfo.Error)
	}

	if len(report.Errors) > 0 {
		fmt.Fprint(output, errorsHeaderConstant)
		for _, message := range report.Errors {
			fmt.Fprintf(output, errorLineTemplateConstant, message)
		}
	}
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
