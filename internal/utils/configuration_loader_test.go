package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forensix/internal/utils"
)

const (
	testEnvironmentPrefix   = "TESTFORENSIX"
	testConfigurationName   = "config"
	testConfigurationType   = "yaml"
	testLogLevelKey         = "common.log_level"
	testAlgorithmsKey       = "tools.integrity.algorithms"
	testLogLevelEnvironment = "TESTFORENSIX_COMMON_LOG_LEVEL"
	testAlgorithmsVariable  = "TESTFORENSIX_TOOLS_INTEGRITY_ALGORITHMS"
)

type configurationFixture struct {
	Common struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"common"`
	Tools struct {
		Integrity struct {
			Algorithms []string `mapstructure:"algorithms"`
			Root       string   `mapstructure:"root"`
		} `mapstructure:"integrity"`
	} `mapstructure:"tools"`
}

func writeConfigurationFile(testInstance *testing.T, directory string, name string, contents string) string {
	testInstance.Helper()
	configurationPath := filepath.Join(directory, name)
	require.NoError(testInstance, os.MkdirAll(directory, 0o755))
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(contents), 0o600))
	return configurationPath
}

func TestConfigurationLoaderLayering(testInstance *testing.T) {
	testCases := []struct {
		name               string
		embedded           string
		file               string
		environment        string
		expectedLogLevel   string
		expectedOverrides  []string
		expectFileRecorded bool
	}{
		{name: "defaults_only", expectedLogLevel: "info"},
		{name: "embedded_over_defaults", embedded: "common:\n  log_level: debug\n", expectedLogLevel: "debug"},
		{name: "file_over_embedded", embedded: "common:\n  log_level: debug\n", file: "common:\n  log_level: warn\n", expectedLogLevel: "warn", expectFileRecorded: true},
		{
			name:               "environment_over_file",
			file:               "common:\n  log_level: warn\n",
			environment:        "error",
			expectedLogLevel:   "error",
			expectedOverrides:  []string{testLogLevelEnvironment},
			expectFileRecorded: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			directory := testInstance.TempDir()
			configurationPath := ""
			if len(testCase.file) > 0 {
				configurationPath = writeConfigurationFile(testInstance, directory, "case.yaml", testCase.file)
			}
			if len(testCase.environment) > 0 {
				testInstance.Setenv(testLogLevelEnvironment, testCase.environment)
			}

			loader := utils.NewConfigurationLoader(testConfigurationName, testConfigurationType, testEnvironmentPrefix, []string{directory})
			loader.SetEmbeddedConfiguration([]byte(testCase.embedded), testConfigurationType)

			var loaded configurationFixture
			metadata, loadError := loader.LoadConfiguration(configurationPath, map[string]any{testLogLevelKey: "info"}, &loaded)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedLogLevel, loaded.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedOverrides, metadata.EnvironmentOverrides)
			if testCase.expectFileRecorded {
				require.Equal(testInstance, configurationPath, metadata.ConfigFileUsed)
			} else {
				require.Empty(testInstance, metadata.ConfigFileUsed)
			}
		})
	}
}

func TestConfigurationLoaderDiscoversFileInSearchPaths(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	userDirectory := filepath.Join(testInstance.TempDir(), "forensix")
	configurationPath := writeConfigurationFile(testInstance, userDirectory, "config.yaml", "tools:\n  integrity:\n    root: /mnt/evidence\n")

	loader := utils.NewConfigurationLoader(testConfigurationName, testConfigurationType, testEnvironmentPrefix, []string{workingDirectory, userDirectory})

	var loaded configurationFixture
	metadata, loadError := loader.LoadConfiguration("", nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "/mnt/evidence", loaded.Tools.Integrity.Root)
	require.Equal(testInstance, configurationPath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderReadsExplicitJSON(testInstance *testing.T) {
	configurationPath := writeConfigurationFile(testInstance, testInstance.TempDir(), "case.json", `{"tools": {"integrity": {"algorithms": ["sha512"], "root": "/mnt/case"}}}`)

	loader := utils.NewConfigurationLoader(testConfigurationName, testConfigurationType, testEnvironmentPrefix, nil)
	loader.SetEmbeddedConfiguration([]byte("common:\n  log_level: info\n"), testConfigurationType)

	var loaded configurationFixture
	metadata, loadError := loader.LoadConfiguration(configurationPath, nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"sha512"}, loaded.Tools.Integrity.Algorithms)
	require.Equal(testInstance, "/mnt/case", loaded.Tools.Integrity.Root)
	require.Equal(testInstance, "info", loaded.Common.LogLevel)
	require.Equal(testInstance, configurationPath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderRejectsMissingExplicitFile(testInstance *testing.T) {
	loader := utils.NewConfigurationLoader(testConfigurationName, testConfigurationType, testEnvironmentPrefix, nil)

	var loaded configurationFixture
	_, loadError := loader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil, &loaded)
	require.Error(testInstance, loadError)
	require.ErrorContains(testInstance, loadError, "failed to read configuration")
}

func TestConfigurationLoaderDecodesListsFromEnvironment(testInstance *testing.T) {
	testInstance.Setenv(testAlgorithmsVariable, "sha512,xxh3")

	loader := utils.NewConfigurationLoader(testConfigurationName, testConfigurationType, testEnvironmentPrefix, []string{testInstance.TempDir()})

	var loaded configurationFixture
	metadata, loadError := loader.LoadConfiguration("", map[string]any{
		testLogLevelKey:   "info",
		testAlgorithmsKey: []string{"md5"},
	}, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"sha512", "xxh3"}, loaded.Tools.Integrity.Algorithms)
	require.Equal(testInstance, "info", loaded.Common.LogLevel)
	require.Equal(testInstance, []string{testAlgorithmsVariable}, metadata.EnvironmentOverrides)
}
