package integrity_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/forensix/internal/digest"
	"github.com/temirov/forensix/internal/integrity"
	"github.com/temirov/forensix/internal/mounts"
	"github.com/temirov/forensix/internal/utils"
)

const (
	testCommandFileNameConstant       = "evidence.txt"
	testCommandOriginalContent        = "original contents"
	testCommandTamperedContent        = "tampered contents, longer"
	testCommandFilePermissions        = 0o600
	testCommandDirectoryPermissions   = 0o755
	testCommandBaselineFileName       = "baseline.json"
	testCommandReportFileName         = "report.json"
	testFirstBaselineOutputPrefix     = "First baseline for "
	testVerificationOutputPrefix      = "Verification of "
	testMountNotDetectedLogMessage    = "Root is not a detected FUSE mount; continuing"
	testMountDetectedLogMessage       = "Root is a FUSE mount"
	testBaselineRecordedOutputPattern = "Baseline recorded at "
)

type recordingMountInspector struct {
	mount      mounts.Mount
	detected   bool
	lookedUpAt []string
}

func (inspector *recordingMountInspector) Lookup(executionContext context.Context, mountPoint string) (mounts.Mount, bool) {
	inspector.lookedUpAt = append(inspector.lookedUpAt, mountPoint)
	return inspector.mount, inspector.detected
}

type commandHarness struct {
	builder   integrity.CommandBuilder
	inspector *recordingMountInspector
	logs      *observer.ObservedLogs
}

func newCommandHarness(configuration integrity.Configuration) commandHarness {
	core, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	inspector := &recordingMountInspector{}
	return commandHarness{
		builder: integrity.CommandBuilder{
			LoggerProvider:        func() *zap.Logger { return logger },
			ConfigurationProvider: func() integrity.Configuration { return configuration },
			MountInspector:        inspector,
		},
		inspector: inspector,
		logs:      observedLogs,
	}
}

func executeVerify(testInstance *testing.T, builder *integrity.CommandBuilder, arguments ...string) (string, error) {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	return executeCommand(command, arguments)
}

func executeBaseline(testInstance *testing.T, builder *integrity.CommandBuilder, arguments ...string) (string, error) {
	testInstance.Helper()
	command, buildError := builder.BuildBaseline()
	require.NoError(testInstance, buildError)
	return executeCommand(command, arguments)
}

func executeCommand(command *cobra.Command, arguments []string) (string, error) {
	var output bytes.Buffer
	command.SetOut(&output)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(append([]string{}, arguments...))
	command.SetContext(context.Background())
	executionError := command.Execute()
	return output.String(), executionError
}

func writeEvidence(testInstance *testing.T, root string, content string) {
	testInstance.Helper()
	require.NoError(testInstance, os.WriteFile(filepath.Join(root, testCommandFileNameConstant), []byte(content), testCommandFilePermissions))
}

func TestVerifyCommandLifecycle(testInstance *testing.T) {
	root := testInstance.TempDir()
	outputDirectory := testInstance.TempDir()
	baselinePath := filepath.Join(outputDirectory, testCommandBaselineFileName)
	reportPath := filepath.Join(outputDirectory, "reports", testCommandReportFileName)
	writeEvidence(testInstance, root, testCommandOriginalContent)

	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = baselinePath
	configuration.Workers = 2
	harness := newCommandHarness(configuration)

	firstOutput, firstError := executeVerify(testInstance, &harness.builder, root)
	require.NoError(testInstance, firstError)
	require.Contains(testInstance, firstOutput, testFirstBaselineOutputPrefix+root)
	require.Contains(testInstance, firstOutput, "  total      1\n")
	require.FileExists(testInstance, baselinePath)
	require.Equal(testInstance, []string{root}, harness.inspector.lookedUpAt)
	require.Equal(testInstance, 1, harness.logs.FilterMessage(testMountNotDetectedLogMessage).Len())

	secondOutput, secondError := executeVerify(testInstance, &harness.builder, root)
	require.NoError(testInstance, secondError)
	require.Contains(testInstance, secondOutput, testVerificationOutputPrefix+root)
	require.Contains(testInstance, secondOutput, "  unchanged  1\n")

	writeEvidence(testInstance, root, testCommandTamperedContent)
	thirdOutput, thirdError := executeVerify(testInstance, &harness.builder, root, "--report", reportPath)
	require.NoError(testInstance, thirdError)
	require.Contains(testInstance, thirdOutput, "  modified   1\n")
	require.Contains(testInstance, thirdOutput, "  "+testCommandFileNameConstant+" (size, md5, sha256)\n")

	reportContent, readError := os.ReadFile(reportPath)
	require.NoError(testInstance, readError)
	var decoded map[string]any
	require.NoError(testInstance, json.Unmarshal(reportContent, &decoded))
	require.Equal(testInstance, "verification", decoded["mode"])
	require.Equal(testInstance, baselinePath, decoded["baseline_file"])

	fourthOutput, fourthError := executeVerify(testInstance, &harness.builder, root)
	require.NoError(testInstance, fourthError)
	require.Contains(testInstance, fourthOutput, "  modified   1\n")
}

func TestVerifyCommandExcludesArtifactsUnderRoot(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeEvidence(testInstance, root, testCommandOriginalContent)

	configuration := integrity.DefaultConfiguration()
	configuration.Root = root
	configuration.Baseline = filepath.Join(root, "forensicx_output", testCommandBaselineFileName)
	harness := newCommandHarness(configuration)

	reportPath := filepath.Join(root, testCommandReportFileName)
	_, firstError := executeVerify(testInstance, &harness.builder, "--report", reportPath)
	require.NoError(testInstance, firstError)

	secondOutput, secondError := executeVerify(testInstance, &harness.builder, "--report", reportPath)
	require.NoError(testInstance, secondError)
	require.Contains(testInstance, secondOutput, "  total      1\n")
	require.Contains(testInstance, secondOutput, "  unchanged  1\n")
	require.NotContains(testInstance, secondOutput, "New:")
}

func TestVerifyCommandKeepsFilesNamedLikeArtifacts(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeEvidence(testInstance, root, testCommandOriginalContent)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(root, "etc"), testCommandDirectoryPermissions))
	require.NoError(testInstance, os.WriteFile(filepath.Join(root, "etc", testCommandBaselineFileName), []byte("nested"), testCommandFilePermissions))
	require.NoError(testInstance, os.WriteFile(filepath.Join(root, "out1.json"), []byte("sibling"), testCommandFilePermissions))

	configuration := integrity.DefaultConfiguration()
	configuration.Root = root
	configuration.Baseline = filepath.Join(root, testCommandBaselineFileName)
	harness := newCommandHarness(configuration)

	reportPath := filepath.Join(root, "out[1].json")
	firstOutput, firstError := executeVerify(testInstance, &harness.builder, "--report", reportPath)
	require.NoError(testInstance, firstError)
	require.Contains(testInstance, firstOutput, "  total      3\n")

	secondOutput, secondError := executeVerify(testInstance, &harness.builder, "--report", reportPath)
	require.NoError(testInstance, secondError)
	require.Contains(testInstance, secondOutput, "  total      3\n")
	require.Contains(testInstance, secondOutput, "  unchanged  3\n")
	require.NotContains(testInstance, secondOutput, "New:")

	require.NoError(testInstance, os.WriteFile(filepath.Join(root, "etc", testCommandBaselineFileName), []byte("altered"), testCommandFilePermissions))
	thirdOutput, thirdError := executeVerify(testInstance, &harness.builder, "--report", reportPath)
	require.NoError(testInstance, thirdError)
	require.Contains(testInstance, thirdOutput, "  etc/baseline.json (md5, sha256)\n")
}

func TestVerifyCommandComparesAgainstLegacyDefaultBaseline(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeEvidence(testInstance, root, testCommandOriginalContent)
	contentDigest := md5.Sum([]byte(testCommandOriginalContent))

	workingDirectory := testInstance.TempDir()
	previousWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NoError(testInstance, os.Chdir(workingDirectory))
	testInstance.Cleanup(func() { _ = os.Chdir(previousWorkingDirectory) })
	legacyDocument := fmt.Sprintf(
		`{"timestamp": "2024-03-01T10:15:30.123456", "mount_point": %q, "files": {%q: {"hashes": {"md5": %q}, "size": %d, "mtime": "2024-03-01T10:00:00"}}, "errors": []}`,
		root,
		testCommandFileNameConstant,
		hex.EncodeToString(contentDigest[:]),
		len(testCommandOriginalContent),
	)
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(integrity.DefaultBaselineFileLocator), testCommandDirectoryPermissions))
	require.NoError(testInstance, os.WriteFile(integrity.DefaultBaselineFileLocator, []byte(legacyDocument), testCommandFilePermissions))

	configuration := integrity.DefaultConfiguration()
	configuration.Root = root
	harness := newCommandHarness(configuration)

	output, verifyError := executeVerify(testInstance, &harness.builder)
	require.NoError(testInstance, verifyError)
	require.Contains(testInstance, output, testVerificationOutputPrefix+root+" against forensicx_output/baseline.json\n")
	require.Contains(testInstance, output, "  unchanged  1\n")
	require.Contains(testInstance, output, "Compared with fewer algorithms:\n  "+testCommandFileNameConstant+"\n")
}

func TestVerifyCommandLogsDetectedMount(testInstance *testing.T) {
	root := testInstance.TempDir()
	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = filepath.Join(testInstance.TempDir(), testCommandBaselineFileName)
	harness := newCommandHarness(configuration)
	harness.inspector.mount = mounts.Mount{MountPoint: root, FuseType: mounts.FuseTypeEncFS, DetectionMethod: mounts.DetectionMethodProcMounts}
	harness.inspector.detected = true

	_, runError := executeVerify(testInstance, &harness.builder, "--root", root)
	require.NoError(testInstance, runError)

	detectedLogs := harness.logs.FilterMessage(testMountDetectedLogMessage).All()
	require.Len(testInstance, detectedLogs, 1)
	require.Equal(testInstance, string(mounts.FuseTypeEncFS), detectedLogs[0].ContextMap()["fuse_type"])
}

func TestBaselineCommandReplacesBaseline(testInstance *testing.T) {
	root := testInstance.TempDir()
	baselinePath := filepath.Join(testInstance.TempDir(), testCommandBaselineFileName)
	writeEvidence(testInstance, root, testCommandOriginalContent)

	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = baselinePath
	harness := newCommandHarness(configuration)

	baselineOutput, baselineError := executeBaseline(testInstance, &harness.builder, root, "--algorithms", "sha512,xxh3")
	require.NoError(testInstance, baselineError)
	require.Equal(testInstance, testBaselineRecordedOutputPattern+baselinePath+": 1 file(s), 0 scan error(s)\n", baselineOutput)

	writeEvidence(testInstance, root, testCommandTamperedContent)
	_, rebaselineError := executeBaseline(testInstance, &harness.builder, root, "--algorithms", "sha512,xxh3")
	require.NoError(testInstance, rebaselineError)

	verifyOutput, verifyError := executeVerify(testInstance, &harness.builder, root, "--algorithms", "sha512,xxh3")
	require.NoError(testInstance, verifyError)
	require.Contains(testInstance, verifyOutput, "  unchanged  1\n")
}

func TestCommandArgumentValidation(testInstance *testing.T) {
	root := testInstance.TempDir()
	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = filepath.Join(testInstance.TempDir(), testCommandBaselineFileName)

	testCases := []struct {
		name          string
		arguments     []string
		expectedError error
	}{
		{name: "missing_root", arguments: []string{}, expectedError: integrity.ErrMissingRoot},
		{name: "too_many_roots", arguments: []string{root, root}},
		{name: "conflicting_root", arguments: []string{root, "--root", filepath.Join(root, "other")}},
		{name: "unsupported_algorithm", arguments: []string{root, "--algorithms", "crc32"}, expectedError: digest.UnsupportedAlgorithmError{Name: "crc32"}},
		{name: "unsupported_store", arguments: []string{root, "--store", "s3"}},
		{name: "postgres_without_dsn", arguments: []string{root, "--store", "postgres"}},
		{name: "invalid_exclude", arguments: []string{root, "--exclude", "["}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			harness := newCommandHarness(configuration)
			_, runError := executeVerify(subtest, &harness.builder, testCase.arguments...)
			require.Error(subtest, runError)
			if testCase.expectedError != nil {
				require.ErrorIs(subtest, runError, testCase.expectedError)
			}
			_, statError := os.Stat(configuration.Baseline)
			require.True(subtest, os.IsNotExist(statError))
		})
	}
}

func TestVerifyCommandFailOnChange(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeEvidence(testInstance, root, testCommandOriginalContent)

	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = filepath.Join(testInstance.TempDir(), testCommandBaselineFileName)
	harness := newCommandHarness(configuration)

	_, firstError := executeVerify(testInstance, &harness.builder, root, "--fail-on-change")
	require.NoError(testInstance, firstError)

	_, unchangedError := executeVerify(testInstance, &harness.builder, root, "--fail-on-change=yes")
	require.NoError(testInstance, unchangedError)

	writeEvidence(testInstance, root, testCommandTamperedContent)
	_, changedError := executeVerify(testInstance, &harness.builder, root, "--fail-on-change")
	require.ErrorIs(testInstance, changedError, integrity.ErrChangesDetected)

	_, disabledError := executeVerify(testInstance, &harness.builder, root, "--fail-on-change=no")
	require.NoError(testInstance, disabledError)
}

func TestVerifyCommandRecordsConfigurationFileInReport(testInstance *testing.T) {
	root := testInstance.TempDir()
	outputDirectory := testInstance.TempDir()
	reportPath := filepath.Join(outputDirectory, testCommandReportFileName)
	writeEvidence(testInstance, root, testCommandOriginalContent)

	configuration := integrity.DefaultConfiguration()
	configuration.Baseline = filepath.Join(outputDirectory, testCommandBaselineFileName)
	harness := newCommandHarness(configuration)

	testCases := []struct {
		name              string
		configurationFile string
	}{
		{name: "embedded_defaults_only"},
		{name: "configuration_file", configurationFile: "/etc/forensix/config.yaml"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			command, buildError := harness.builder.Build()
			require.NoError(testInstance, buildError)
			command.SetOut(&bytes.Buffer{})
			command.SetErr(&bytes.Buffer{})
			command.SetArgs([]string{root, "--report", reportPath})
			executionContext := utils.NewCommandContextAccessor().WithConfigurationFile(context.Background(), testCase.configurationFile)
			require.NoError(testInstance, command.ExecuteContext(executionContext))

			contents, readError := os.ReadFile(reportPath)
			require.NoError(testInstance, readError)
			var decoded map[string]any
			require.NoError(testInstance, json.Unmarshal(contents, &decoded))
			if len(testCase.configurationFile) == 0 {
				require.NotContains(testInstance, decoded, "configuration_file")
				return
			}
			require.Equal(testInstance, testCase.configurationFile, decoded["configuration_file"])
		})
	}
}
