// Package snapshot walks a directory tree and builds a baseline document of
// every regular file beneath it.
//
// Files are hashed by a bounded pool of workers. Each worker reports a
// per-file result to a single collector, which owns the record map and the
// scan error list. Unreadable files, symbolic links and special files become
// scan errors; only a root that cannot be scanned fails the whole build.
package snapshot
