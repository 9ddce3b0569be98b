// Package filesystem provides the operating system backed implementation of
// the filesystem collaborators the other forensix packages consume.
package filesystem
