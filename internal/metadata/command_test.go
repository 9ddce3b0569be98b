package metadata_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/metadata"
)

type stubExtractor struct {
	report metadata.Report
	roots  []string
}

func (extractor *stubExtractor) Collect(_ context.Context, root string) (metadata.Report, error) {
	extractor.roots = append(extractor.roots, root)
	return extractor.report, nil
}

func TestMetadataCommandOutput(testInstance *testing.T) {
	sampleReport := metadata.Report{
		Root: "/mnt/vault",
		FilesystemInfo: metadata.FilesystemInfo{
			MountPoint: "/mnt/vault",
			Statistics: &metadata.Statistics{BlockSize: 4096, TotalSpace: 40960, FreeSpace: 8192, AvailableSpace: 4096, TotalInodes: 64, FreeInodes: 60},
		},
		Files: map[string]metadata.FileMetadata{
			"evidence.txt": {Type: metadata.TypeRegularFile, Size: 5, Inode: 12},
			"hidden":       {Error: "lstat hidden: permission denied"},
		},
		Errors: []string{"cannot read directory private: permission denied"},
	}

	testCases := []struct {
		name      string
		arguments []string
		verify    func(*testing.T, string, string)
	}{
		{
			name:      "summary",
			arguments: []string{"/mnt/vault", "--output", ""},
			verify: func(testInstance *testing.T, output string, _ string) {
				require.Contains(testInstance, output, "Extracted metadata for 2 entries under /mnt/vault\n")
				require.Contains(testInstance, output, "Metadata unavailable for 1 entries\n")
				require.Contains(testInstance, output, "BLOCK SIZE")
				require.Contains(testInstance, output, "40960")
				require.Contains(testInstance, output, "Errors:\n  cannot read directory private: permission denied\n")
				require.NotContains(testInstance, output, "Metadata saved")
			},
		},
		{
			name:      "json_and_file",
			arguments: []string{"/mnt/vault", "--json"},
			verify: func(testInstance *testing.T, output string, outputPath string) {
				var decoded metadata.Report
				require.NoError(testInstance, json.Unmarshal([]byte(output), &decoded))
				require.Equal(testInstance, sampleReport, decoded)

				saved, readError := os.ReadFile(outputPath)
				require.NoError(testInstance, readError)
				require.JSONEq(testInstance, output, string(saved))
			},
		},
		{
			name:      "summary_and_file",
			arguments: []string{"/mnt/vault"},
			verify: func(testInstance *testing.T, output string, outputPath string) {
				require.Contains(testInstance, output, "Metadata saved to "+outputPath+"\n")
				require.FileExists(testInstance, outputPath)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outputPath := filepath.Join(testInstance.TempDir(), "case", "metadata.json")
			extractor := &stubExtractor{report: sampleReport}
			builder := metadata.CommandBuilder{
				LoggerProvider:    func() *zap.Logger { return zap.NewNop() },
				ExtractorProvider: func(*zap.Logger) metadata.Extractor { return extractor },
			}
			command, buildError := builder.Build()
			require.NoError(testInstance, buildError)
			require.NoError(testInstance, command.Flags().Set("output", outputPath))

			var output bytes.Buffer
			command.SetOut(&output)
			command.SetErr(&output)
			command.SetArgs(testCase.arguments)
			command.SetContext(context.Background())

			require.NoError(testInstance, command.Execute())
			require.Equal(testInstance, []string{"/mnt/vault"}, extractor.roots)
			testCase.verify(testInstance, output.String(), outputPath)
		})
	}
}
