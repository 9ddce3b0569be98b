package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testToggleName = "fail-on-change"

func newToggleCommandTree() (*cobra.Command, *cobra.Command, *ToggleValue) {
	root := &cobra.Command{Use: "forensix"}
	verify := &cobra.Command{Use: "verify [root]", RunE: func(*cobra.Command, []string) error { return nil }}
	toggle := AddToggleFlag(verify.Flags(), testToggleName, false, "Exit with an error on change")
	verify.Flags().String("baseline", "", "Baseline locator")
	root.AddCommand(verify)
	return root, verify, toggle
}

func TestNormalizeToggleArguments(testInstance *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "joins_literal",
			arguments: []string{"verify", "--fail-on-change", "no", "/data"},
			expected:  []string{"verify", "--fail-on-change=no", "/data"},
		},
		{
			name:      "keeps_positional_root",
			arguments: []string{"verify", "--fail-on-change", "/data"},
			expected:  []string{"verify", "--fail-on-change", "/data"},
		},
		{
			name:      "ignores_other_flags",
			arguments: []string{"verify", "--baseline", "yes"},
			expected:  []string{"verify", "--baseline", "yes"},
		},
		{
			name:      "already_assigned",
			arguments: []string{"verify", "--fail-on-change=off", "on"},
			expected:  []string{"verify", "--fail-on-change=off", "on"},
		},
		{
			name:      "stops_at_terminator",
			arguments: []string{"verify", "--", "--fail-on-change", "yes"},
			expected:  []string{"verify", "--", "--fail-on-change", "yes"},
		},
		{
			name:      "empty",
			arguments: []string{},
			expected:  []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			root, _, _ := newToggleCommandTree()
			require.Equal(testInstance, testCase.expected, NormalizeToggleArguments(root, testCase.arguments))
		})
	}
}

func TestToggleFlagParsesLiterals(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectedEnabled bool
		expectedRoot    []string
	}{
		{name: "default", arguments: []string{"verify"}, expectedEnabled: false, expectedRoot: []string{}},
		{name: "bare", arguments: []string{"verify", "--fail-on-change", "/data"}, expectedEnabled: true, expectedRoot: []string{"/data"}},
		{name: "yes", arguments: []string{"verify", "--fail-on-change", "YES", "/data"}, expectedEnabled: true, expectedRoot: []string{"/data"}},
		{name: "off", arguments: []string{"verify", "--fail-on-change", "off"}, expectedEnabled: false, expectedRoot: []string{}},
		{name: "zero_assigned", arguments: []string{"verify", "--fail-on-change=0"}, expectedEnabled: false, expectedRoot: []string{}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			root, verify, toggle := newToggleCommandTree()
			var receivedArguments []string
			verify.RunE = func(command *cobra.Command, arguments []string) error {
				receivedArguments = append([]string{}, arguments...)
				return nil
			}
			root.SetArgs(NormalizeToggleArguments(root, testCase.arguments))
			require.NoError(testInstance, root.Execute())

			require.Equal(testInstance, testCase.expectedEnabled, toggle.Enabled())
			enabled, lookupError := verify.Flags().GetBool(testToggleName)
			require.NoError(testInstance, lookupError)
			require.Equal(testInstance, testCase.expectedEnabled, enabled)
			require.Equal(testInstance, testCase.expectedRoot, receivedArguments)
		})
	}
}

func TestToggleFlagRejectsUnknownLiteral(testInstance *testing.T) {
	value := &ToggleValue{}
	require.EqualError(testInstance, value.Set("maybe"), `invalid toggle value "maybe": use yes/no, on/off, true/false or 1/0`)
	require.False(testInstance, value.Enabled())
}
