package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/execshell"
	"github.com/temirov/forensix/internal/filesystem"
)

const (
	// DefaultOutputDirectory is where recovered files land when no directory is given.
	DefaultOutputDirectory = "forensicx_output/recovered_files"

	recoveredDirectoryPrefixConstant     = "recovered_"
	recoveredFileNameTemplateConstant    = "%s_%s"
	unknownOutputNameConstant            = "unknown"
	recoveryDirectoryPermissions         = 0o700
	fileListRecursiveFlagConstant        = "-r"
	fileListDeletedOnlyFlagConstant      = "-d"
	fileListFullPathFlagConstant         = "-p"
	missingSourceMessageConstant         = "recovery source is required"
	missingToolsMessageConstant          = "sleuth kit tools not configured"
	createDirectoryErrorTemplateConstant = "cannot create recovery directory %s: %w"
	logMessageRecoveryStarted            = "Recovering deleted files"
	logMessageEntrySkipped               = "Skipping non-regular deleted entry"
	logMessageEntryFailed                = "Deleted entry could not be recovered"
	logMessageRecoveryCompleted          = "Recovery completed"
	logFieldSourceConstant               = "source"
	logFieldOutputDirectoryConstant      = "output_directory"
	logFieldAddressConstant              = "address"
	logFieldNameConstant                 = "name"
	logFieldEntryTypeConstant            = "entry_type"
	logFieldRecoveredCountConstant       = "recovered"
	logFieldFailedCountConstant          = "failed"
)

var (
	// ErrMissingSource indicates an empty image or device path.
	ErrMissingSource = errors.New(missingSourceMessageConstant)
	// ErrMissingTools indicates a Recoverer built without Sleuth Kit access.
	ErrMissingTools = errors.New(missingToolsMessageConstant)
)

// Tools runs the Sleuth Kit commands recovery depends on.
type Tools interface {
	ExecuteFileList(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteInodeCat(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// FileSystem creates the recovery directory and the recovered files.
type FileSystem interface {
	MkdirAll(path string, permissions fs.FileMode) error
	Create(path string) (io.WriteCloser, error)
}

// Request names the image or device to scan and where recovered files go.
type Request struct {
	Source          string
	OutputDirectory string
}

// Recoverer lists deleted entries with fls and extracts them with icat.
type Recoverer struct {
	tools      Tools
	fileSystem FileSystem
	logger     *zap.Logger
}

// NewRecoverer validates collaborators. A nil file system falls back to the
// operating system and a nil logger to a no-op logger.
func NewRecoverer(tools Tools, fileSystem FileSystem, logger *zap.Logger) (*Recoverer, error) {
	if tools == nil {
		return nil, ErrMissingTools
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recoverer{tools: tools, fileSystem: fileSystem, logger: logger}, nil
}

// Recover extracts every deleted regular file fls reports for request.Source
// into a recovered_<source base> directory below request.OutputDirectory.
// Per-entry failures are recorded in the report; a listing failure or a
// cancelled context aborts the run.
func (recoverer *Recoverer) Recover(executionContext context.Context, request Request) (Report, error) {
	source := strings.TrimSpace(request.Source)
	if len(source) == 0 {
		return Report{}, ErrMissingSource
	}
	outputRoot := request.OutputDirectory
	if len(strings.TrimSpace(outputRoot)) == 0 {
		outputRoot = DefaultOutputDirectory
	}
	outputDirectory := filepath.Join(outputRoot, recoveredDirectoryPrefixConstant+filepath.Base(filepath.Clean(source)))

	recoverer.logger.Info(logMessageRecoveryStarted,
		zap.String(logFieldSourceConstant, source),
		zap.String(logFieldOutputDirectoryConstant, outputDirectory),
	)

	if directoryError := recoverer.fileSystem.MkdirAll(outputDirectory, recoveryDirectoryPermissions); directoryError != nil {
		return Report{}, fmt.Errorf(createDirectoryErrorTemplateConstant, outputDirectory, directoryError)
	}

	listing, listError := recoverer.tools.ExecuteFileList(executionContext, execshell.CommandDetails{
		Arguments: []string{fileListRecursiveFlagConstant, fileListDeletedOnlyFlagConstant, fileListFullPathFlagConstant, source},
	})
	if listError != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return Report{}, contextError
		}
		return Report{}, ListingError{Source: source, Cause: listError}
	}

	report := Report{Source: source, OutputDirectory: outputDirectory, RecoveredFiles: []RecoveredFile{}}
	for _, entry := range ParseFileList(listing.StandardOutput) {
		if contextError := executionContext.Err(); contextError != nil {
			return Report{}, contextError
		}
		if !entry.IsRegularFile() {
			report.Skipped++
			recoverer.logger.Debug(logMessageEntrySkipped,
				zap.String(logFieldAddressConstant, entry.Address),
				zap.String(logFieldEntryTypeConstant, entry.EntryType),
			)
			continue
		}
		report.RecoveredFiles = append(report.RecoveredFiles, recoverer.recoverEntry(executionContext, source, outputDirectory, entry))
	}

	failed := report.FailedCount()
	recoverer.logger.Info(logMessageRecoveryCompleted,
		zap.String(logFieldSourceConstant, source),
		zap.Int(logFieldRecoveredCountConstant, len(report.RecoveredFiles)-failed),
		zap.Int(logFieldFailedCountConstant, failed),
	)
	return report, nil
}

func (recoverer *Recoverer) recoverEntry(executionContext context.Context, source string, outputDirectory string, entry DeletedEntry) RecoveredFile {
	recovered := RecoveredFile{
		Inode:       entry.Inode,
		Address:     entry.Address,
		Name:        entry.Name,
		OutputPath:  filepath.Join(outputDirectory, outputFileName(entry)),
		Reallocated: entry.Reallocated,
	}

	output, createError := recoverer.fileSystem.Create(recovered.OutputPath)
	if createError != nil {
		return recoverer.recordFailure(recovered, createError)
	}

	result, catError := recoverer.tools.ExecuteInodeCat(executionContext, execshell.CommandDetails{
		Arguments:      []string{source, entry.Address},
		StandardOutput: output,
	})
	closeError := output.Close()
	if catError != nil {
		return recoverer.recordFailure(recovered, catError)
	}
	if closeError != nil {
		return recoverer.recordFailure(recovered, closeError)
	}
	recovered.Size = result.BytesWritten
	return recovered
}

func (recoverer *Recoverer) recordFailure(recovered RecoveredFile, cause error) RecoveredFile {
	recovered.Error = cause.Error()
	recoverer.logger.Warn(logMessageEntryFailed,
		zap.String(logFieldAddressConstant, recovered.Address),
		zap.String(logFieldNameConstant, recovered.Name),
		zap.Error(cause),
	)
	return recovered
}

// outputFileName prefixes the entry's base name with its address so entries
// that shared a name stay distinct.
func outputFileName(entry DeletedEntry) string {
	baseName := path.Base(entry.Name)
	baseName = strings.ReplaceAll(baseName, string(filepath.Separator), "_")
	switch baseName {
	case ".", "..":
		baseName = unknownOutputNameConstant
	}
	return fmt.Sprintf(recoveredFileNameTemplateConstant, entry.Address, baseName)
}
