// Package mounts detects FUSE filesystems from /proc/mounts and df output and
// classifies them as encfs, bindfs, or generic FUSE mounts.
package mounts
