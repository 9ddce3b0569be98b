package utils

import (
	"context"
	"strings"
)

type commandContextKey struct {
	name string
}

var configurationFileContextKey = &commandContextKey{name: "configuration-file"}

// CommandContextAccessor stores values the root command resolves before a
// subcommand runs and reads them back inside the subcommand.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFile records the configuration file that was loaded. A
// blank path, meaning only embedded defaults applied, is not recorded.
func (CommandContextAccessor) WithConfigurationFile(parentContext context.Context, configurationFile string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	if len(strings.TrimSpace(configurationFile)) == 0 {
		return parentContext
	}
	return context.WithValue(parentContext, configurationFileContextKey, configurationFile)
}

// ConfigurationFile returns the recorded configuration file.
func (CommandContextAccessor) ConfigurationFile(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFile, recorded := executionContext.Value(configurationFileContextKey).(string)
	return configurationFile, recorded
}
