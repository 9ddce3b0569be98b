package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/filesystem"
)

const (
	missingRootMessageConstant          = "metadata root is required"
	rootNotDirectoryTemplateConstant    = "%s is not a directory"
	rootInspectionErrorTemplateConstant = "cannot inspect %s: %w"
	readDirectoryErrorTemplateConstant  = "cannot read directory %s: %v"
	rootRelativePathConstant            = "."
	logMessageCollectionStarted         = "Extracting metadata"
	logMessageCollectionCompleted       = "Metadata extracted"
	logMessageEntryFailed               = "Metadata unavailable"
	logMessageDirectoryFailed           = "Directory unreadable"
	logMessageStatisticsFailed          = "Filesystem statistics unavailable"
	logFieldRootConstant                = "root"
	logFieldPathConstant                = "path"
	logFieldEntriesConstant             = "entries"
	logFieldFailedConstant              = "failed"
)

// ErrMissingRoot indicates an empty root path.
var ErrMissingRoot = errors.New(missingRootMessageConstant)

// Inspector reads metadata for single entries and filesystem statistics.
type Inspector interface {
	Inspect(path string) (FileMetadata, error)
	Statistics(path string) (Statistics, error)
}

// FileSystem exposes the directory operations Collector depends on.
type FileSystem interface {
	ReadDir(path string) ([]fs.DirEntry, error)
	Abs(path string) (string, error)
}

// Collector walks a directory tree and inspects every entry below it.
type Collector struct {
	inspector  Inspector
	names      NameResolver
	fileSystem FileSystem
	logger     *zap.Logger
}

// NewCollector wires collaborators; nil values fall back to the host
// inspector, the account database, the operating system, and a no-op logger.
func NewCollector(inspector Inspector, names NameResolver, fileSystem FileSystem, logger *zap.Logger) *Collector {
	if inspector == nil {
		inspector = NewSystemInspector()
	}
	if names == nil {
		names = NewAccountNameResolver()
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{inspector: inspector, names: names, fileSystem: fileSystem, logger: logger}
}

// Collect inspects every entry below root without following symbolic links.
// Unreadable entries and directories are recorded in the report; an
// uninspectable root or a cancelled context aborts the walk.
func (collector *Collector) Collect(executionContext context.Context, root string) (Report, error) {
	if len(strings.TrimSpace(root)) == 0 {
		return Report{}, ErrMissingRoot
	}
	absoluteRoot, absError := collector.fileSystem.Abs(root)
	if absError != nil {
		return Report{}, fmt.Errorf(rootInspectionErrorTemplateConstant, root, absError)
	}
	rootMetadata, inspectError := collector.inspector.Inspect(absoluteRoot)
	if inspectError != nil {
		return Report{}, fmt.Errorf(rootInspectionErrorTemplateConstant, absoluteRoot, inspectError)
	}
	if rootMetadata.Type != TypeDirectory {
		return Report{}, fmt.Errorf(rootNotDirectoryTemplateConstant, absoluteRoot)
	}

	collector.logger.Info(logMessageCollectionStarted, zap.String(logFieldRootConstant, absoluteRoot))

	report := Report{
		Root:           absoluteRoot,
		FilesystemInfo: collector.filesystemInfo(absoluteRoot),
		Files:          make(map[string]FileMetadata),
		Errors:         []string{},
	}
	if walkError := collector.walk(executionContext, absoluteRoot, rootRelativePathConstant, &report); walkError != nil {
		return Report{}, walkError
	}

	collector.logger.Info(logMessageCollectionCompleted,
		zap.String(logFieldRootConstant, absoluteRoot),
		zap.Int(logFieldEntriesConstant, len(report.Files)),
		zap.Int(logFieldFailedConstant, report.FailedCount()),
	)
	return report, nil
}

func (collector *Collector) filesystemInfo(root string) FilesystemInfo {
	info := FilesystemInfo{MountPoint: root}
	statistics, statisticsError := collector.inspector.Statistics(root)
	if statisticsError != nil {
		info.Error = statisticsError.Error()
		collector.logger.Warn(logMessageStatisticsFailed, zap.String(logFieldRootConstant, root), zap.Error(statisticsError))
		return info
	}
	info.Statistics = &statistics
	return info
}

func (collector *Collector) walk(executionContext context.Context, root string, relativeDirectory string, report *Report) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	directory := filepath.Join(root, filepath.FromSlash(relativeDirectory))
	entries, readError := collector.fileSystem.ReadDir(directory)
	if readError != nil {
		report.Errors = append(report.Errors, fmt.Sprintf(readDirectoryErrorTemplateConstant, relativeDirectory, readError))
		collector.logger.Warn(logMessageDirectoryFailed, zap.String(logFieldPathConstant, relativeDirectory), zap.Error(readError))
		return nil
	}

	for _, entry := range entries {
		relativePath := path.Join(relativeDirectory, entry.Name())
		report.Files[relativePath] = collector.inspectEntry(filepath.Join(directory, entry.Name()), relativePath)
		if !entry.IsDir() {
			continue
		}
		if walkError := collector.walk(executionContext, root, relativePath, report); walkError != nil {
			return walkError
		}
	}
	return nil
}

func (collector *Collector) inspectEntry(absolutePath string, relativePath string) FileMetadata {
	metadata, inspectError := collector.inspector.Inspect(absolutePath)
	if inspectError != nil {
		collector.logger.Warn(logMessageEntryFailed, zap.String(logFieldPathConstant, relativePath), zap.Error(inspectError))
		return FileMetadata{Error: inspectError.Error()}
	}
	if name, resolved := collector.names.UserName(metadata.Ownership.UserID); resolved {
		metadata.Ownership.User = name
	}
	if name, resolved := collector.names.GroupName(metadata.Ownership.GroupID); resolved {
		metadata.Ownership.Group = name
	}
	return metadata
}
