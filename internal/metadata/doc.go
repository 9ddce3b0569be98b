// Package metadata records lstat metadata for every entry below a directory
// together with statfs statistics for the filesystem holding it.
package metadata
