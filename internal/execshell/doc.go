// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with lifecycle logging and typed errors,
// and OSCommandRunner runs processes through os/exec under the C locale. Mount
// detection runs df through it, and deleted-file recovery runs The Sleuth Kit's
// fls and icat, streaming icat output straight into the recovered file.
package execshell
