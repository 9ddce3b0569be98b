package integrity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forensix/internal/integrity"
)

func TestDefaultConfiguration(testInstance *testing.T) {
	configuration := integrity.DefaultConfiguration()
	require.Equal(testInstance, integrity.DefaultBaselineFileLocator, configuration.Baseline)
	require.Equal(testInstance, integrity.StoreKindFile, configuration.Store)
	require.Equal(testInstance, []string{"md5", "sha256"}, configuration.Algorithms)
	require.Empty(testInstance, configuration.Root)
}

func TestConfigurationSanitize(testInstance *testing.T) {
	homeDirectory, homeError := os.UserHomeDir()
	require.NoError(testInstance, homeError)

	testCases := []struct {
		name     string
		input    integrity.Configuration
		expected integrity.Configuration
	}{
		{
			name:  "defaults_applied",
			input: integrity.Configuration{Root: "  /srv/data  "},
			expected: integrity.Configuration{
				Root:       "/srv/data",
				Baseline:   integrity.DefaultBaselineFileLocator,
				Algorithms: []string{"md5", "sha256"},
				Store:      integrity.StoreKindFile,
			},
		},
		{
			name: "home_expanded_and_values_trimmed",
			input: integrity.Configuration{
				Root:       "~/evidence",
				Baseline:   "~/baselines/evidence.yaml",
				Algorithms: []string{" sha512 ", "", "xxh3"},
				Workers:    4,
				Store:      " FILE ",
				Excludes:   []string{" *.tmp ", " "},
			},
			expected: integrity.Configuration{
				Root:       filepath.Join(homeDirectory, "evidence"),
				Baseline:   filepath.Join(homeDirectory, "baselines/evidence.yaml"),
				Algorithms: []string{"sha512", "xxh3"},
				Workers:    4,
				Store:      integrity.StoreKindFile,
				Excludes:   []string{"*.tmp"},
			},
		},
		{
			name: "postgres_default_name",
			input: integrity.Configuration{
				Root:        "/srv/data",
				Store:       "postgres",
				PostgresDSN: " postgres://forensix@localhost/forensix ",
			},
			expected: integrity.Configuration{
				Root:        "/srv/data",
				Baseline:    integrity.DefaultBaselineName,
				Algorithms:  []string{"md5", "sha256"},
				Store:       integrity.StoreKindPostgres,
				PostgresDSN: "postgres://forensix@localhost/forensix",
			},
		},
		{
			name: "postgres_locator_not_expanded",
			input: integrity.Configuration{
				Root:     "/srv/data",
				Store:    integrity.StoreKindPostgres,
				Baseline: "~nightly",
			},
			expected: integrity.Configuration{
				Root:       "/srv/data",
				Baseline:   "~nightly",
				Algorithms: []string{"md5", "sha256"},
				Store:      integrity.StoreKindPostgres,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			require.Equal(subtest, testCase.expected, testCase.input.Sanitize())
		})
	}
}

func TestDefaultConfigurationValues(testInstance *testing.T) {
	values := integrity.DefaultConfigurationValues("tools.integrity")
	require.Equal(testInstance, map[string]any{
		"tools.integrity.root":         "",
		"tools.integrity.baseline":     integrity.DefaultBaselineFileLocator,
		"tools.integrity.algorithms":   []string{"md5", "sha256"},
		"tools.integrity.workers":      0,
		"tools.integrity.store":        "file",
		"tools.integrity.excludes":     []string{},
		"tools.integrity.postgres_dsn": "",
	}, values)
}

func TestConfigurationSanitizeExpandsEnvironmentReferences(testInstance *testing.T) {
	caseDirectory := testInstance.TempDir()
	testInstance.Setenv("FORENSIX_CASE_DIRECTORY", caseDirectory)

	sanitized := integrity.Configuration{
		Root:     "$FORENSIX_CASE_DIRECTORY/mount",
		Baseline: "${FORENSIX_CASE_DIRECTORY}/baseline.yaml",
	}.Sanitize()

	require.Equal(testInstance, caseDirectory+"/mount", sanitized.Root)
	require.Equal(testInstance, caseDirectory+"/baseline.yaml", sanitized.Baseline)
}
