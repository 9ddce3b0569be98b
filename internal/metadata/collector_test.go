package metadata_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/forensix/internal/metadata"
)

const (
	testUserName  = "examiner"
	testGroupName = "evidence"
)

type stubInspector struct {
	failures        map[string]error
	statisticsError error
	inspected       []string
}

func (inspector *stubInspector) Inspect(path string) (metadata.FileMetadata, error) {
	inspector.inspected = append(inspector.inspected, path)
	if failure, failed := inspector.failures[filepath.Base(path)]; failed {
		return metadata.FileMetadata{}, failure
	}
	info, statError := os.Lstat(path)
	if statError != nil {
		return metadata.FileMetadata{}, statError
	}
	return metadata.FileMetadata{
		Type:      metadata.TypeName(info.Mode()),
		Size:      info.Size(),
		Ownership: metadata.Ownership{UserID: 1000, GroupID: 2000},
	}, nil
}

func (inspector *stubInspector) Statistics(string) (metadata.Statistics, error) {
	if inspector.statisticsError != nil {
		return metadata.Statistics{}, inspector.statisticsError
	}
	return metadata.Statistics{BlockSize: 4096, TotalSpace: 8192, TotalInodes: 10}, nil
}

type stubNameResolver struct{}

func (stubNameResolver) UserName(userID uint32) (string, bool) {
	return testUserName, userID == 1000
}

func (stubNameResolver) GroupName(uint32) (string, bool) {
	return "", false
}

func writeTree(testInstance *testing.T, root string, files map[string]string) {
	testInstance.Helper()
	for relativePath, contents := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		require.NoError(testInstance, os.WriteFile(absolutePath, []byte(contents), 0o644))
	}
}

func TestCollectorWalksTree(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeTree(testInstance, root, map[string]string{
		"evidence.txt":        "alpha",
		"logs/auth.log":       "sshd",
		"logs/archive/old.gz": "zz",
		"unreadable.bin":      "?",
	})
	require.NoError(testInstance, os.Symlink("evidence.txt", filepath.Join(root, "latest")))

	inspector := &stubInspector{failures: map[string]error{"unreadable.bin": errors.New("lstat unreadable.bin: permission denied")}}
	observerCore, observedLogs := observer.New(zap.DebugLevel)
	collector := metadata.NewCollector(inspector, stubNameResolver{}, nil, zap.New(observerCore))

	report, collectError := collector.Collect(context.Background(), root)
	require.NoError(testInstance, collectError)

	require.Equal(testInstance, root, report.Root)
	require.Equal(testInstance, root, report.FilesystemInfo.MountPoint)
	require.Equal(testInstance, &metadata.Statistics{BlockSize: 4096, TotalSpace: 8192, TotalInodes: 10}, report.FilesystemInfo.Statistics)
	require.Empty(testInstance, report.Errors)
	require.Equal(testInstance, 1, report.FailedCount())

	expectedTypes := map[string]string{
		"evidence.txt":        metadata.TypeRegularFile,
		"latest":              metadata.TypeSymbolicLink,
		"logs":                metadata.TypeDirectory,
		"logs/archive":        metadata.TypeDirectory,
		"logs/archive/old.gz": metadata.TypeRegularFile,
		"logs/auth.log":       metadata.TypeRegularFile,
		"unreadable.bin":      "",
	}
	require.Len(testInstance, report.Files, len(expectedTypes))
	for relativePath, expectedType := range expectedTypes {
		require.Equal(testInstance, expectedType, report.Files[relativePath].Type, relativePath)
	}

	require.Equal(testInstance, int64(5), report.Files["evidence.txt"].Size)
	require.Equal(testInstance, testUserName, report.Files["evidence.txt"].Ownership.User)
	require.Empty(testInstance, report.Files["evidence.txt"].Ownership.Group)
	require.Equal(testInstance, "lstat unreadable.bin: permission denied", report.Files["unreadable.bin"].Error)
	require.Len(testInstance, observedLogs.FilterMessage("Metadata unavailable").All(), 1)

	for _, inspectedPath := range inspector.inspected {
		require.False(testInstance, strings.HasPrefix(inspectedPath, filepath.Join(root, "latest")+string(filepath.Separator)))
	}
}

func TestCollectorRecordsStatisticsFailure(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeTree(testInstance, root, map[string]string{"a.txt": "a"})

	collector := metadata.NewCollector(&stubInspector{statisticsError: errors.New("statfs: function not implemented")}, stubNameResolver{}, nil, nil)
	report, collectError := collector.Collect(context.Background(), root)
	require.NoError(testInstance, collectError)
	require.Nil(testInstance, report.FilesystemInfo.Statistics)
	require.Equal(testInstance, "statfs: function not implemented", report.FilesystemInfo.Error)
	require.Contains(testInstance, report.Files, "a.txt")
}

func TestCollectorRejectsInvalidRoots(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeTree(testInstance, root, map[string]string{"plain.txt": "x"})

	testCases := []struct {
		name          string
		root          string
		expectedError string
	}{
		{name: "empty", root: " ", expectedError: metadata.ErrMissingRoot.Error()},
		{name: "file", root: filepath.Join(root, "plain.txt"), expectedError: filepath.Join(root, "plain.txt") + " is not a directory"},
		{name: "missing", root: filepath.Join(root, "absent"), expectedError: "cannot inspect " + filepath.Join(root, "absent")},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			collector := metadata.NewCollector(&stubInspector{}, stubNameResolver{}, nil, nil)
			_, collectError := collector.Collect(context.Background(), testCase.root)
			require.Error(testInstance, collectError)
			require.Contains(testInstance, collectError.Error(), testCase.expectedError)
		})
	}
}

func TestCollectorStopsWhenContextIsCancelled(testInstance *testing.T) {
	root := testInstance.TempDir()
	writeTree(testInstance, root, map[string]string{"a.txt": "a"})

	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, collectError := metadata.NewCollector(&stubInspector{}, stubNameResolver{}, nil, nil).Collect(executionContext, root)
	require.ErrorIs(testInstance, collectError, context.Canceled)
}
