package metadata

import (
	"io/fs"
	"time"
)

// Entry type names reported in FileMetadata.Type.
const (
	TypeRegularFile     = "regular file"
	TypeDirectory       = "directory"
	TypeCharacterDevice = "character device"
	TypeBlockDevice     = "block device"
	TypeNamedPipe       = "FIFO (named pipe)"
	TypeSymbolicLink    = "symbolic link"
	TypeSocket          = "socket"
	TypeUnknown         = "unknown"
)

// Permissions carries the raw mode and the access checks for the current user.
type Permissions struct {
	Mode       uint32 `json:"mode"`
	Symbolic   string `json:"symbolic"`
	Readable   bool   `json:"readable"`
	Writable   bool   `json:"writable"`
	Executable bool   `json:"executable"`
}

// Ownership carries numeric identifiers and, when resolvable, their names.
type Ownership struct {
	UserID  uint32 `json:"uid"`
	GroupID uint32 `json:"gid"`
	User    string `json:"user,omitempty"`
	Group   string `json:"group,omitempty"`
}

// Timestamps holds the three inode times. ChangeTime is the inode change
// time, not a creation time.
type Timestamps struct {
	AccessTime       time.Time `json:"access_time"`
	ModificationTime time.Time `json:"modification_time"`
	ChangeTime       time.Time `json:"change_time"`
}

// FileMetadata describes one entry without following symbolic links.
type FileMetadata struct {
	Type        string      `json:"type"`
	Size        int64       `json:"size"`
	Inode       uint64      `json:"inode"`
	Links       uint64      `json:"links"`
	LinkTarget  string      `json:"link_target,omitempty"`
	Permissions Permissions `json:"permissions"`
	Ownership   Ownership   `json:"ownership"`
	Timestamps  Timestamps  `json:"timestamps"`
	Error       string      `json:"error,omitempty"`
}

// Statistics summarises capacity and inode usage of a filesystem.
type Statistics struct {
	BlockSize      uint64 `json:"block_size"`
	TotalSpace     uint64 `json:"total_space"`
	FreeSpace      uint64 `json:"free_space"`
	AvailableSpace uint64 `json:"available_space"`
	TotalInodes    uint64 `json:"total_inodes"`
	FreeInodes     uint64 `json:"free_inodes"`
}

// FilesystemInfo pairs the inspected root with its statistics or the error
// that prevented reading them.
type FilesystemInfo struct {
	MountPoint string      `json:"mount_point"`
	Statistics *Statistics `json:"statistics,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Report is the outcome of one collection. Files is keyed by the
// slash-separated path relative to Root.
type Report struct {
	Root           string                  `json:"root"`
	FilesystemInfo FilesystemInfo          `json:"filesystem_info"`
	Files          map[string]FileMetadata `json:"files"`
	Errors         []string                `json:"errors"`
}

// FailedCount returns the number of entries whose metadata could not be read.
func (report Report) FailedCount() int {
	failed := 0
	for _, metadata := range report.Files {
		if len(metadata.Error) > 0 {
			failed++
		}
	}
	return failed
}

// TypeName maps a file mode to its entry type name.
func TypeName(mode fs.FileMode) string {
	switch {
	case mode.IsRegular():
		return TypeRegularFile
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymbolicLink
	case mode&fs.ModeNamedPipe != 0:
		return TypeNamedPipe
	case mode&fs.ModeSocket != 0:
		return TypeSocket
	case mode&fs.ModeCharDevice != 0:
		return TypeCharacterDevice
	case mode&fs.ModeDevice != 0:
		return TypeBlockDevice
	default:
		return TypeUnknown
	}
}
