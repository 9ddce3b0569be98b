package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/forensix/internal/baseline"
	"github.com/temirov/forensix/internal/digest"
	"github.com/temirov/forensix/internal/filesystem"
)

const (
	scanErrorTemplateConstant        = "%s: %v"
	symbolicLinkScanErrorTemplate    = "%s: symbolic link not hashed"
	specialFileScanErrorTemplate     = "%s: special file not hashed"
	invalidExcludePatternTemplate    = "invalid exclude pattern %q: %w"
	resultBufferPerWorkerConstant    = 2
	logMessageSnapshotStarted        = "Snapshot started"
	logMessageSnapshotCompleted      = "Snapshot completed"
	logMessageSnapshotCancelled      = "Snapshot cancelled"
	logMessageFileHashed             = "File hashed"
	logMessageScanErrorRecorded      = "Scan error recorded"
	logMessageArtifactSkipped        = "Artifact skipped"
	logFieldRootConstant             = "root"
	logFieldPathConstant             = "path"
	logFieldWorkersConstant          = "workers"
	logFieldAlgorithmsConstant       = "algorithms"
	logFieldRecordCountConstant      = "records"
	logFieldScanErrorCountConstant   = "scan_errors"
	logFieldScanErrorMessageConstant = "message"
	relativeRootPathConstant         = ""
)

var errRootNotDirectory = errors.New(rootNotDirectoryMessageConstant)

// Snapshotter builds baseline documents from directory trees.
type Snapshotter struct {
	fileSystem FileSystem
	hasher     *digest.Hasher
	workers    int
	clock      Clock
	excludes   []string
	skipPaths  map[string]struct{}
	logger     *zap.Logger
}

// fileResult is the outcome of processing one entry: exactly one of record or
// scanError is set.
type fileResult struct {
	record    *baseline.FileRecord
	scanError string
}

// NewSnapshotter validates the configuration and constructs a Snapshotter.
// A nil fileSystem uses the operating system and a nil logger discards output.
func NewSnapshotter(configuration Configuration, fileSystem FileSystem, logger *zap.Logger) (*Snapshotter, error) {
	algorithms := configuration.Algorithms
	if len(algorithms) == 0 {
		algorithms = digest.DefaultAlgorithms()
	}

	hasher, hasherError := digest.NewHasher(algorithms)
	if hasherError != nil {
		return nil, hasherError
	}

	for _, pattern := range configuration.Excludes {
		if _, matchError := path.Match(pattern, ""); matchError != nil {
			return nil, fmt.Errorf(invalidExcludePatternTemplate, pattern, matchError)
		}
	}

	workers := configuration.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	clock := configuration.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	skipPaths := make(map[string]struct{}, len(configuration.SkipPaths))
	for _, skipPath := range configuration.SkipPaths {
		cleaned := path.Clean(filepath.ToSlash(skipPath))
		if cleaned == "." || cleaned == "/" {
			continue
		}
		skipPaths[cleaned] = struct{}{}
	}

	return &Snapshotter{
		fileSystem: fileSystem,
		hasher:     hasher,
		workers:    workers,
		clock:      clock,
		excludes:   append([]string(nil), configuration.Excludes...),
		skipPaths:  skipPaths,
		logger:     logger,
	}, nil
}

// Algorithms returns the algorithm set every record is digested with.
func (snapshotter *Snapshotter) Algorithms() []digest.Algorithm {
	return snapshotter.hasher.Algorithms()
}

// Build walks root and returns a document describing every regular file below it.
// A cancelled context yields the context error and a zero document.
func (snapshotter *Snapshotter) Build(executionContext context.Context, root string) (baseline.Document, error) {
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return baseline.Document{}, RootScanError{Root: root, Cause: absoluteError}
	}

	rootInfo, statError := snapshotter.fileSystem.Stat(absoluteRoot)
	if statError != nil {
		return baseline.Document{}, RootScanError{Root: absoluteRoot, Cause: statError}
	}
	if !rootInfo.IsDir() {
		return baseline.Document{}, RootScanError{Root: absoluteRoot, Cause: errRootNotDirectory}
	}

	snapshotter.logger.Info(
		logMessageSnapshotStarted,
		zap.String(logFieldRootConstant, absoluteRoot),
		zap.Int(logFieldWorkersConstant, snapshotter.workers),
		zap.Strings(logFieldAlgorithmsConstant, algorithmNames(snapshotter.hasher.Algorithms())),
	)

	document := baseline.NewDocument(absoluteRoot, snapshotter.clock.Now(), snapshotter.hasher.Algorithms())

	results := make(chan fileResult, snapshotter.workers*resultBufferPerWorkerConstant)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for result := range results {
			if result.record != nil {
				document.Records[result.record.Path] = *result.record
				continue
			}
			document.ScanErrors = append(document.ScanErrors, result.scanError)
		}
	}()

	workerGroup, groupContext := errgroup.WithContext(executionContext)
	workerGroup.SetLimit(snapshotter.workers)

	walkError := snapshotter.walkDirectory(groupContext, workerGroup, results, absoluteRoot, relativeRootPathConstant)
	waitError := workerGroup.Wait()
	close(results)
	<-collectorDone

	if contextError := executionContext.Err(); contextError != nil {
		snapshotter.logger.Info(logMessageSnapshotCancelled, zap.String(logFieldRootConstant, absoluteRoot))
		return baseline.Document{}, contextError
	}
	if walkError != nil {
		return baseline.Document{}, walkError
	}
	if waitError != nil {
		return baseline.Document{}, waitError
	}

	sort.Strings(document.ScanErrors)

	snapshotter.logger.Info(
		logMessageSnapshotCompleted,
		zap.String(logFieldRootConstant, absoluteRoot),
		zap.Int(logFieldRecordCountConstant, len(document.Records)),
		zap.Int(logFieldScanErrorCountConstant, len(document.ScanErrors)),
	)

	return document, nil
}

func (snapshotter *Snapshotter) walkDirectory(
	executionContext context.Context,
	workerGroup *errgroup.Group,
	results chan<- fileResult,
	absoluteDirectory string,
	relativeDirectory string,
) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	entries, readError := snapshotter.fileSystem.ReadDir(absoluteDirectory)
	if readError != nil {
		if relativeDirectory == relativeRootPathConstant {
			return RootScanError{Root: absoluteDirectory, Cause: readError}
		}
		snapshotter.reportScanError(results, formatScanError(relativeDirectory, readError))
		return nil
	}

	for _, entry := range entries {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}

		relativePath := path.Join(relativeDirectory, entry.Name())
		if _, skipped := snapshotter.skipPaths[relativePath]; skipped {
			snapshotter.logger.Debug(logMessageArtifactSkipped, zap.String(logFieldPathConstant, relativePath))
			continue
		}
		if snapshotter.excluded(relativePath) {
			continue
		}
		absolutePath := filepath.Join(absoluteDirectory, entry.Name())

		entryType := entry.Type()
		switch {
		case entryType&fs.ModeSymlink != 0:
			snapshotter.reportScanError(results, fmt.Sprintf(symbolicLinkScanErrorTemplate, relativePath))
		case entryType.IsDir():
			if walkError := snapshotter.walkDirectory(executionContext, workerGroup, results, absolutePath, relativePath); walkError != nil {
				return walkError
			}
		case entryType.IsRegular():
			workerGroup.Go(func() error {
				results <- snapshotter.processFile(absolutePath, relativePath)
				return nil
			})
		default:
			snapshotter.reportScanError(results, fmt.Sprintf(specialFileScanErrorTemplate, relativePath))
		}
	}

	return nil
}

// processFile records metadata from Lstat and digests the contents in one pass.
func (snapshotter *Snapshotter) processFile(absolutePath string, relativePath string) fileResult {
	fileInfo, statError := snapshotter.fileSystem.Lstat(absolutePath)
	if statError != nil {
		return snapshotter.scanErrorResult(formatScanError(relativePath, statError))
	}
	if fileInfo.Mode()&fs.ModeSymlink != 0 {
		return snapshotter.scanErrorResult(fmt.Sprintf(symbolicLinkScanErrorTemplate, relativePath))
	}
	if !fileInfo.Mode().IsRegular() {
		return snapshotter.scanErrorResult(fmt.Sprintf(specialFileScanErrorTemplate, relativePath))
	}

	digests, digestError := snapshotter.hasher.ComputeFileDigests(snapshotter.fileSystem, absolutePath)
	if digestError != nil {
		var ioFailure digest.IOFailure
		if errors.As(digestError, &ioFailure) {
			return snapshotter.scanErrorResult(formatScanError(relativePath, ioFailure.Cause))
		}
		return snapshotter.scanErrorResult(formatScanError(relativePath, digestError))
	}

	snapshotter.logger.Debug(logMessageFileHashed, zap.String(logFieldPathConstant, relativePath))

	return fileResult{record: &baseline.FileRecord{
		Path:       relativePath,
		Digests:    digests,
		Size:       fileInfo.Size(),
		ModifiedAt: fileInfo.ModTime().UTC(),
	}}
}

func (snapshotter *Snapshotter) reportScanError(results chan<- fileResult, message string) {
	results <- snapshotter.scanErrorResult(message)
}

func (snapshotter *Snapshotter) scanErrorResult(message string) fileResult {
	snapshotter.logger.Warn(logMessageScanErrorRecorded, zap.String(logFieldScanErrorMessageConstant, message))
	return fileResult{scanError: message}
}

// excluded matches patterns against the slash-separated relative path and its base name.
func (snapshotter *Snapshotter) excluded(relativePath string) bool {
	baseName := path.Base(relativePath)
	for _, pattern := range snapshotter.excludes {
		if matched, _ := path.Match(pattern, relativePath); matched {
			return true
		}
		if matched, _ := path.Match(pattern, baseName); matched {
			return true
		}
	}
	return false
}

// formatScanError strips the absolute path an *fs.PathError carries so messages
// stay relative to the root.
func formatScanError(relativePath string, cause error) string {
	var pathError *fs.PathError
	if errors.As(cause, &pathError) {
		cause = pathError.Err
	}
	return fmt.Sprintf(scanErrorTemplateConstant, relativePath, cause)
}

func algorithmNames(algorithms []digest.Algorithm) []string {
	names := make([]string, 0, len(algorithms))
	for _, algorithm := range algorithms {
		names = append(names, algorithm.String())
	}
	return names
}
