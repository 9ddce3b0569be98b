package execshell_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/forensix/internal/execshell"
)

const (
	testDiskFreeTypeFlag   = "-T"
	testImagePath          = "/dev/loop0"
	testInodeAddress       = "14"
	testMissingToolMessage = "executable file not found in $PATH"
)

type recordingCommandRunner struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	return runner.executionResult, runner.executionError
}

type executorCall func(executor *execshell.ShellExecutor, details execshell.CommandDetails) (execshell.ExecutionResult, error)

func diskFreeCall(executor *execshell.ShellExecutor, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.ExecuteDiskFree(context.Background(), details)
}

func fileListCall(executor *execshell.ShellExecutor, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.ExecuteFileList(context.Background(), details)
}

func inodeCatCall(executor *execshell.ShellExecutor, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.ExecuteInodeCat(context.Background(), details)
}

func TestNewShellExecutorRequiresDependencies(testInstance *testing.T) {
	_, loggerError := execshell.NewShellExecutor(nil, &recordingCommandRunner{})
	require.ErrorIs(testInstance, loggerError, execshell.ErrLoggerNotConfigured)

	_, runnerError := execshell.NewShellExecutor(zap.NewNop(), nil)
	require.ErrorIs(testInstance, runnerError, execshell.ErrCommandRunnerNotConfigured)

	executor, creationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{})
	require.NoError(testInstance, creationError)
	require.NotNil(testInstance, executor)
}

func TestShellExecutorWrappersNameTheirTool(testInstance *testing.T) {
	var recovered bytes.Buffer

	testCases := []struct {
		name            string
		call            executorCall
		details         execshell.CommandDetails
		expectedCommand execshell.CommandName
	}{
		{
			name:            "disk_free",
			call:            diskFreeCall,
			details:         execshell.CommandDetails{Arguments: []string{testDiskFreeTypeFlag}},
			expectedCommand: execshell.CommandDiskFree,
		},
		{
			name:            "file_list",
			call:            fileListCall,
			details:         execshell.CommandDetails{Arguments: []string{"-r", "-d", "-p", testImagePath}},
			expectedCommand: execshell.CommandFileList,
		},
		{
			name:            "inode_cat",
			call:            inodeCatCall,
			details:         execshell.CommandDetails{Arguments: []string{testImagePath, testInodeAddress}, StandardOutput: &recovered},
			expectedCommand: execshell.CommandInodeCat,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := &recordingCommandRunner{executionResult: execshell.ExecutionResult{StandardOutput: "ok", BytesWritten: 2}}
			executor, creationError := execshell.NewShellExecutor(zap.NewNop(), runner)
			require.NoError(testInstance, creationError)

			result, executionError := testCase.call(executor, testCase.details)
			require.NoError(testInstance, executionError)
			require.Equal(testInstance, int64(2), result.BytesWritten)
			require.Len(testInstance, runner.recordedCommands, 1)
			require.Equal(testInstance, testCase.expectedCommand, runner.recordedCommands[0].Name)
			require.Equal(testInstance, testCase.details.Arguments, runner.recordedCommands[0].Details.Arguments)
			require.Equal(testInstance, testCase.details.StandardOutput, runner.recordedCommands[0].Details.StandardOutput)
		})
	}
}

func TestShellExecutorLogsLifecycle(testInstance *testing.T) {
	testCases := []struct {
		name           string
		runnerResult   execshell.ExecutionResult
		runnerError    error
		expectedLevels []zapcore.Level
		expectedLast   string
	}{
		{
			name:           "success",
			runnerResult:   execshell.ExecutionResult{StandardOutput: "r/r * 14:\tgone.txt"},
			expectedLevels: []zapcore.Level{zapcore.DebugLevel, zapcore.DebugLevel},
			expectedLast:   "Listed deleted entries in /dev/loop0",
		},
		{
			name:           "non_zero_exit",
			runnerResult:   execshell.ExecutionResult{ExitCode: 1, StandardError: "Invalid magic value"},
			expectedLevels: []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel},
			expectedLast:   "Failed to list deleted entries in /dev/loop0 (exit code 1: Invalid magic value)",
		},
		{
			name:           "runner_error",
			runnerError:    errors.New(testMissingToolMessage),
			expectedLevels: []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel},
			expectedLast:   "Unable to list deleted entries in /dev/loop0: " + testMissingToolMessage,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zap.DebugLevel)
			executor, creationError := execshell.NewShellExecutor(zap.New(observerCore), &recordingCommandRunner{
				executionResult: testCase.runnerResult,
				executionError:  testCase.runnerError,
			})
			require.NoError(testInstance, creationError)

			_, _ = executor.ExecuteFileList(context.Background(), execshell.CommandDetails{Arguments: []string{"-r", "-d", "-p", testImagePath}})

			entries := observedLogs.All()
			require.Len(testInstance, entries, len(testCase.expectedLevels))
			for index, expectedLevel := range testCase.expectedLevels {
				require.Equal(testInstance, expectedLevel, entries[index].Level)
			}
			require.Equal(testInstance, testCase.expectedLast, entries[len(entries)-1].Message)
		})
	}
}

func TestShellExecutorTypedErrors(testInstance *testing.T) {
	runnerFailure := errors.New(testMissingToolMessage)
	executor, creationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{executionError: runnerFailure})
	require.NoError(testInstance, creationError)

	_, executionError := executor.ExecuteDiskFree(context.Background(), execshell.CommandDetails{Arguments: []string{testDiskFreeTypeFlag}})
	require.ErrorIs(testInstance, executionError, runnerFailure)
	require.ErrorAs(testInstance, executionError, &execshell.CommandExecutionError{})
	require.Equal(testInstance, "df -T could not run: "+testMissingToolMessage, executionError.Error())

	failingExecutor, failingCreationError := execshell.NewShellExecutor(zap.NewNop(), &recordingCommandRunner{
		executionResult: execshell.ExecutionResult{ExitCode: 1, StandardError: " icat: Error reading image file \n"},
	})
	require.NoError(testInstance, failingCreationError)

	result, failedError := failingExecutor.ExecuteInodeCat(context.Background(), execshell.CommandDetails{Arguments: []string{testImagePath, testInodeAddress}})
	var commandFailed execshell.CommandFailedError
	require.ErrorAs(testInstance, failedError, &commandFailed)
	require.Equal(testInstance, 1, commandFailed.Result.ExitCode)
	require.Empty(testInstance, result.StandardOutput)
	require.Equal(testInstance, "icat /dev/loop0 14 exited with code 1: icat: Error reading image file", failedError.Error())
}
