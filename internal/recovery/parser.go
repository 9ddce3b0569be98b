package recovery

import (
	"bufio"
	"fmt"
	"strings"
)

const (
	fileListNameSeparator         = ":"
	fileListDepthCharacters       = "+ \t"
	fileListDeletedMarker         = "*"
	reallocatedNameSuffixConstant = " (realloc)"
	deletedNameSuffixConstant     = " (deleted)"
	unknownFileNameTemplate       = "unknown_file_%s"
	minimumHeaderFieldCount       = 2
)

// ParseFileList extracts entries from `fls -r -d -p` output. Lines carry the
// type column, an optional deletion marker, and the inode address before the
// colon, and the path after it:
//
//	r/r * 14:	docs/file2.txt
//	+ r/r * 17-128-1:	document.pdf (realloc)
func ParseFileList(output string) []DeletedEntry {
	entries := make([]DeletedEntry, 0)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if entry, parsed := parseFileListLine(scanner.Text()); parsed {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseFileListLine(line string) (DeletedEntry, bool) {
	trimmed := strings.TrimLeft(line, fileListDepthCharacters)
	header, name, found := strings.Cut(trimmed, fileListNameSeparator)
	if !found {
		return DeletedEntry{}, false
	}

	fields := strings.Fields(header)
	if len(fields) < minimumHeaderFieldCount || !strings.Contains(fields[0], entryTypeSeparator) {
		return DeletedEntry{}, false
	}
	for _, marker := range fields[1 : len(fields)-1] {
		if marker != fileListDeletedMarker {
			return DeletedEntry{}, false
		}
	}

	address := fields[len(fields)-1]
	inode := leadingDigits(address)
	if len(inode) == 0 {
		return DeletedEntry{}, false
	}

	name = strings.TrimSpace(name)
	reallocated := strings.HasSuffix(name, reallocatedNameSuffixConstant)
	name = strings.TrimSuffix(name, reallocatedNameSuffixConstant)
	name = strings.TrimSuffix(name, deletedNameSuffixConstant)
	if len(name) == 0 {
		name = fmt.Sprintf(unknownFileNameTemplate, inode)
	}

	return DeletedEntry{
		EntryType:   fields[0],
		Address:     address,
		Inode:       inode,
		Name:        name,
		Reallocated: reallocated,
	}, true
}

func leadingDigits(value string) string {
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	return value[:end]
}
