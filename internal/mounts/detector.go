package mounts

import (
	"context"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/execshell"
	"github.com/temirov/forensix/internal/filesystem"
)

const (
	// DefaultProcMountsPath is the kernel mount table read by Detect.
	DefaultProcMountsPath = "/proc/mounts"

	diskFreeFilesystemTypeFlag      = "-T"
	logMessageProcMountsFailed      = "Could not read mount table"
	logMessageDiskFreeFailed        = "Could not list filesystems with df"
	logMessageDuplicateMountSkipped = "Skipping mount already detected"
	logMessageMountDetected         = "Detected FUSE mount"
	logMessageNoMountsDetected      = "No FUSE filesystems detected"
	logMessageMountsDetected        = "Detected FUSE filesystems"
	logFieldPathConstant            = "path"
	logFieldMountPointConstant      = "mount_point"
	logFieldFuseTypeConstant        = "fuse_type"
	logFieldMethodConstant          = "detection_method"
	logFieldCountConstant           = "count"
)

// FileOpener opens the mount table.
type FileOpener interface {
	Open(path string) (io.ReadCloser, error)
}

// DiskFreeExecutor runs df.
type DiskFreeExecutor interface {
	ExecuteDiskFree(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Detector finds FUSE mounts using the mount table and df.
type Detector struct {
	opener         FileOpener
	executor       DiskFreeExecutor
	logger         *zap.Logger
	procMountsPath string
}

// NewDetector constructs a Detector. A nil opener reads from the operating
// system, a nil executor disables df detection, and a nil logger discards output.
func NewDetector(opener FileOpener, executor DiskFreeExecutor, logger *zap.Logger) *Detector {
	if opener == nil {
		opener = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		opener:         opener,
		executor:       executor,
		logger:         logger,
		procMountsPath: DefaultProcMountsPath,
	}
}

// Detect returns FUSE mounts from the mount table followed by those only df
// reported. Failures of either source are logged and tolerated.
func (detector *Detector) Detect(executionContext context.Context) []Mount {
	detected := make([]Mount, 0)
	seenMountPoints := make(map[string]struct{})

	appendUnique := func(candidates []Mount) {
		for _, candidate := range candidates {
			if _, seen := seenMountPoints[candidate.MountPoint]; seen {
				detector.logger.Debug(logMessageDuplicateMountSkipped, zap.String(logFieldMountPointConstant, candidate.MountPoint))
				continue
			}
			seenMountPoints[candidate.MountPoint] = struct{}{}
			detected = append(detected, candidate)
			detector.logger.Debug(
				logMessageMountDetected,
				zap.String(logFieldMountPointConstant, candidate.MountPoint),
				zap.String(logFieldFuseTypeConstant, string(candidate.FuseType)),
				zap.String(logFieldMethodConstant, string(candidate.DetectionMethod)),
			)
		}
	}

	appendUnique(detector.detectFromProcMounts())
	appendUnique(detector.detectFromDiskFree(executionContext))

	if len(detected) == 0 {
		detector.logger.Warn(logMessageNoMountsDetected)
	} else {
		detector.logger.Info(logMessageMountsDetected, zap.Int(logFieldCountConstant, len(detected)))
	}
	return detected
}

// Lookup reports the detected mount at mountPoint. When none matches it returns
// a placeholder with FuseTypeUnknown and false.
func (detector *Detector) Lookup(executionContext context.Context, mountPoint string) (Mount, bool) {
	target := normalizeMountPoint(mountPoint)
	for _, candidate := range detector.Detect(executionContext) {
		if normalizeMountPoint(candidate.MountPoint) == target {
			return candidate, true
		}
	}
	return Mount{MountPoint: mountPoint, FuseType: FuseTypeUnknown}, false
}

func (detector *Detector) detectFromProcMounts() []Mount {
	mountTable, openError := detector.opener.Open(detector.procMountsPath)
	if openError != nil {
		detector.logger.Warn(logMessageProcMountsFailed, zap.String(logFieldPathConstant, detector.procMountsPath), zap.Error(openError))
		return nil
	}
	defer mountTable.Close()

	detected, parseError := ParseProcMounts(mountTable)
	if parseError != nil {
		detector.logger.Warn(logMessageProcMountsFailed, zap.String(logFieldPathConstant, detector.procMountsPath), zap.Error(parseError))
	}
	return detected
}

func (detector *Detector) detectFromDiskFree(executionContext context.Context) []Mount {
	if detector.executor == nil {
		return nil
	}
	result, executionError := detector.executor.ExecuteDiskFree(executionContext, execshell.CommandDetails{
		Arguments: []string{diskFreeFilesystemTypeFlag},
	})
	if executionError != nil {
		detector.logger.Warn(logMessageDiskFreeFailed, zap.Error(executionError))
		return nil
	}
	return ParseDiskFree(result.StandardOutput)
}

func normalizeMountPoint(mountPoint string) string {
	absolutePath, absoluteError := filepath.Abs(mountPoint)
	if absoluteError != nil {
		return filepath.Clean(mountPoint)
	}
	return absolutePath
}
