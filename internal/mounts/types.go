package mounts

import "strings"

// FuseType classifies a FUSE mount by the filesystem implementing it.
type FuseType string

// Recognized FUSE types. FuseTypeUnknown marks a path that was not detected as a mount.
const (
	FuseTypeEncFS   FuseType = "encfs"
	FuseTypeBindFS  FuseType = "bindfs"
	FuseTypeGeneric FuseType = "generic"
	FuseTypeUnknown FuseType = "unknown"
)

// DetectionMethod names the source a mount was detected from.
type DetectionMethod string

// Detection methods.
const (
	DetectionMethodProcMounts DetectionMethod = "proc_mounts"
	DetectionMethodDiskFree   DetectionMethod = "df_command"
)

// Mount describes one detected FUSE filesystem.
type Mount struct {
	Source          string          `json:"source"`
	MountPoint      string          `json:"mount_point"`
	FilesystemType  string          `json:"fs_type"`
	FuseType        FuseType        `json:"fuse_type"`
	DetectionMethod DetectionMethod `json:"detection_method"`
}

type fuseTypeKeywords struct {
	fuseType FuseType
	keywords []string
}

// fuseTypeClassification is evaluated in order; the first matching keyword wins.
var fuseTypeClassification = []fuseTypeKeywords{
	{fuseType: FuseTypeEncFS, keywords: []string{"encfs", "encrypted"}},
	{fuseType: FuseTypeBindFS, keywords: []string{"bindfs"}},
	{fuseType: FuseTypeGeneric, keywords: []string{"fuse"}},
}

// ClassifyFuseType inspects a mount description line for known FUSE keywords.
func ClassifyFuseType(description string) FuseType {
	lowered := strings.ToLower(description)
	for _, classification := range fuseTypeClassification {
		for _, keyword := range classification.keywords {
			if strings.Contains(lowered, keyword) {
				return classification.fuseType
			}
		}
	}
	return FuseTypeGeneric
}
