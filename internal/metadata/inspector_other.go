//go:build !linux

package metadata

import (
	"errors"
	"io/fs"
	"os"
)

const (
	ownerReadBit    = 0o400
	ownerWriteBit   = 0o200
	ownerExecuteBit = 0o100
)

// SystemInspector reads the portable subset of lstat metadata. Inode,
// ownership and statfs figures are unavailable on this platform.
type SystemInspector struct{}

// NewSystemInspector constructs the host inspector.
func NewSystemInspector() SystemInspector {
	return SystemInspector{}
}

// Inspect returns the portable lstat metadata for path.
func (SystemInspector) Inspect(path string) (FileMetadata, error) {
	info, statError := os.Lstat(path)
	if statError != nil {
		return FileMetadata{}, statError
	}
	fileMode := info.Mode()
	metadata := FileMetadata{
		Type: TypeName(fileMode),
		Size: info.Size(),
		Permissions: Permissions{
			Mode:       uint32(fileMode),
			Symbolic:   fileMode.String(),
			Readable:   fileMode&ownerReadBit != 0,
			Writable:   fileMode&ownerWriteBit != 0,
			Executable: fileMode&ownerExecuteBit != 0,
		},
		Timestamps: Timestamps{ModificationTime: info.ModTime()},
	}
	if fileMode&fs.ModeSymlink != 0 {
		if target, linkError := os.Readlink(path); linkError == nil {
			metadata.LinkTarget = target
		}
	}
	return metadata, nil
}

// Statistics is not supported on this platform.
func (SystemInspector) Statistics(path string) (Statistics, error) {
	return Statistics{}, &fs.PathError{Op: "statfs", Path: path, Err: errors.ErrUnsupported}
}
