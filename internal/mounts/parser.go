package mounts

import (
	"bufio"
	"io"
	"strings"
)

const (
	fuseKeywordConstant            = "fuse"
	procMountsMinimumFieldsCount   = 3
	diskFreeMinimumFieldsCount     = 7
	diskFreeMountPointFieldIndex   = 6
	procMountsMountPointFieldIndex = 1
	procMountsTypeFieldIndex       = 2
	diskFreeTypeFieldIndex         = 1
)

// ParseProcMounts extracts FUSE mounts from /proc/mounts formatted content.
// Each line reads "source mount_point fs_type options dump pass".
func ParseProcMounts(reader io.Reader) ([]Mount, error) {
	var detected []Mount
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), fuseKeywordConstant) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < procMountsMinimumFieldsCount {
			continue
		}
		detected = append(detected, Mount{
			Source:          fields[0],
			MountPoint:      unescapeMountPath(fields[procMountsMountPointFieldIndex]),
			FilesystemType:  fields[procMountsTypeFieldIndex],
			FuseType:        ClassifyFuseType(line),
			DetectionMethod: DetectionMethodProcMounts,
		})
	}
	if scanError := scanner.Err(); scanError != nil {
		return detected, scanError
	}
	return detected, nil
}

// ParseDiskFree extracts FUSE mounts from `df -T` output. The header line is skipped.
// Columns read "Filesystem Type 1K-blocks Used Available Use% Mounted-on".
func ParseDiskFree(output string) []Mount {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 1 {
		return nil
	}

	var detected []Mount
	for _, line := range lines[1:] {
		if !strings.Contains(strings.ToLower(line), fuseKeywordConstant) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < diskFreeMinimumFieldsCount {
			continue
		}
		detected = append(detected, Mount{
			Source:          fields[0],
			MountPoint:      strings.Join(fields[diskFreeMountPointFieldIndex:], " "),
			FilesystemType:  fields[diskFreeTypeFieldIndex],
			FuseType:        ClassifyFuseType(line),
			DetectionMethod: DetectionMethodDiskFree,
		})
	}
	return detected
}

// unescapeMountPath decodes the octal escapes /proc/mounts uses for spaces, tabs and backslashes.
func unescapeMountPath(raw string) string {
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(raw)
}
