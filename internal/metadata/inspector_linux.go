//go:build linux

package metadata

import (
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	lstatOperationConstant  = "lstat"
	statfsOperationConstant = "statfs"
	permissionBitsMask      = 0o777
)

// SystemInspector reads metadata with lstat, access, and statfs.
type SystemInspector struct{}

// NewSystemInspector constructs the host inspector.
func NewSystemInspector() SystemInspector {
	return SystemInspector{}
}

// Inspect returns the lstat metadata for path.
func (SystemInspector) Inspect(path string) (FileMetadata, error) {
	var status unix.Stat_t
	if statError := unix.Lstat(path, &status); statError != nil {
		return FileMetadata{}, &fs.PathError{Op: lstatOperationConstant, Path: path, Err: statError}
	}

	fileMode := fileModeFromUnix(status.Mode)
	metadata := FileMetadata{
		Type:  TypeName(fileMode),
		Size:  status.Size,
		Inode: status.Ino,
		Links: uint64(status.Nlink),
		Permissions: Permissions{
			Mode:       status.Mode,
			Symbolic:   fileMode.String(),
			Readable:   unix.Access(path, unix.R_OK) == nil,
			Writable:   unix.Access(path, unix.W_OK) == nil,
			Executable: unix.Access(path, unix.X_OK) == nil,
		},
		Ownership: Ownership{UserID: status.Uid, GroupID: status.Gid},
		Timestamps: Timestamps{
			AccessTime:       time.Unix(status.Atim.Unix()),
			ModificationTime: time.Unix(status.Mtim.Unix()),
			ChangeTime:       time.Unix(status.Ctim.Unix()),
		},
	}
	if fileMode&fs.ModeSymlink != 0 {
		if target, linkError := os.Readlink(path); linkError == nil {
			metadata.LinkTarget = target
		}
	}
	return metadata, nil
}

// Statistics returns statfs capacity figures for the filesystem holding path.
// Sizes use the fragment size, falling back to the block size.
func (SystemInspector) Statistics(path string) (Statistics, error) {
	var status unix.Statfs_t
	if statError := unix.Statfs(path, &status); statError != nil {
		return Statistics{}, &fs.PathError{Op: statfsOperationConstant, Path: path, Err: statError}
	}

	blockSize := uint64(status.Frsize)
	if blockSize == 0 {
		blockSize = uint64(status.Bsize)
	}
	return Statistics{
		BlockSize:      blockSize,
		TotalSpace:     blockSize * status.Blocks,
		FreeSpace:      blockSize * status.Bfree,
		AvailableSpace: blockSize * status.Bavail,
		TotalInodes:    status.Files,
		FreeInodes:     status.Ffree,
	}, nil
}

func fileModeFromUnix(mode uint32) fs.FileMode {
	fileMode := fs.FileMode(mode & permissionBitsMask)
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		fileMode |= fs.ModeDir
	case unix.S_IFLNK:
		fileMode |= fs.ModeSymlink
	case unix.S_IFCHR:
		fileMode |= fs.ModeDevice | fs.ModeCharDevice
	case unix.S_IFBLK:
		fileMode |= fs.ModeDevice
	case unix.S_IFIFO:
		fileMode |= fs.ModeNamedPipe
	case unix.S_IFSOCK:
		fileMode |= fs.ModeSocket
	case unix.S_IFREG:
	default:
		fileMode |= fs.ModeIrregular
	}
	if mode&unix.S_ISUID != 0 {
		fileMode |= fs.ModeSetuid
	}
	if mode&unix.S_ISGID != 0 {
		fileMode |= fs.ModeSetgid
	}
	if mode&unix.S_ISVTX != 0 {
		fileMode |= fs.ModeSticky
	}
	return fileMode
}
