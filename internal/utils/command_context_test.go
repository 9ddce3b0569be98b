package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/forensix/internal/utils"
)

func TestCommandContextAccessorConfigurationFile(testInstance *testing.T) {
	testCases := []struct {
		name             string
		parentContext    context.Context
		configuration    string
		expectedFile     string
		expectedRecorded bool
	}{
		{name: "recorded", parentContext: context.Background(), configuration: "/etc/forensix/config.yaml", expectedFile: "/etc/forensix/config.yaml", expectedRecorded: true},
		{name: "blank_not_recorded", parentContext: context.Background(), configuration: "  "},
		{name: "nil_parent", parentContext: nil, configuration: "config.yaml", expectedFile: "config.yaml", expectedRecorded: true},
	}

	accessor := utils.NewCommandContextAccessor()
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executionContext := accessor.WithConfigurationFile(testCase.parentContext, testCase.configuration)
			require.NotNil(testInstance, executionContext)

			configurationFile, recorded := accessor.ConfigurationFile(executionContext)
			require.Equal(testInstance, testCase.expectedRecorded, recorded)
			require.Equal(testInstance, testCase.expectedFile, configurationFile)
		})
	}

	_, recorded := accessor.ConfigurationFile(nil)
	require.False(testInstance, recorded)
}
