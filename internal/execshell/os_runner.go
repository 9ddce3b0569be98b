package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
)

const (
	environmentAssignmentTemplateConstant = "%s=%s"
	localeEnvironmentVariableConstant     = "LC_ALL"
	portableLocaleConstant                = "C"
)

// OSCommandRunner starts processes through os/exec under the C locale, so df
// headers and fls listings parse the same on every host.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes command and waits for it. A non-zero exit is reported through
// ExecutionResult.ExitCode; a cancelled context is returned as the error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)

	var bufferedOutput bytes.Buffer
	var standardError bytes.Buffer
	output := &countingWriter{target: &bufferedOutput}
	if command.Details.StandardOutput != nil {
		output.target = command.Details.StandardOutput
	}
	process.Stdout = output
	process.Stderr = &standardError

	runError := process.Run()
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	result := ExecutionResult{
		StandardOutput: bufferedOutput.String(),
		StandardError:  standardError.String(),
		BytesWritten:   output.written,
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return ExecutionResult{}, runError
}

// mergeEnvironment appends the portable locale and then the overrides in key
// order; os/exec keeps the last value of a duplicated key.
func mergeEnvironment(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides)+1)
	merged = append(merged, base...)
	merged = append(merged, fmt.Sprintf(environmentAssignmentTemplateConstant, localeEnvironmentVariableConstant, portableLocaleConstant))

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, fmt.Sprintf(environmentAssignmentTemplateConstant, key, overrides[key]))
	}
	return merged
}

type countingWriter struct {
	target  io.Writer
	written int64
}

func (writer *countingWriter) Write(data []byte) (int, error) {
	count, writeError := writer.target.Write(data)
	writer.written += int64(count)
	return count, writeError
}
