package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	toggleAnnotationKey       = "forensix/toggle"
	toggleValueType           = "bool"
	toggleTrueValue           = "true"
	toggleFalseValue          = "false"
	toggleEnabledPlaceholder  = "YES|no"
	toggleDisabledPlaceholder = "yes|NO"
	toggleUsageTemplate       = "`<%s>` %s"
	toggleParseErrorTemplate  = "invalid toggle value %q: use yes/no, on/off, true/false or 1/0"
	longFlagPrefix            = "--"
	flagValueSeparator        = "="
	argumentTerminator        = "--"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"on":    true,
	"y":     true,
	"1":     true,
	"false": false,
	"no":    false,
	"off":   false,
	"n":     false,
	"0":     false,
}

// ToggleValue is a boolean flag value that also understands yes/no and on/off.
type ToggleValue struct {
	enabled bool
}

// Enabled reports the parsed value.
func (value *ToggleValue) Enabled() bool {
	return value != nil && value.enabled
}

// Set parses raw; an empty value enables the toggle.
func (value *ToggleValue) Set(raw string) error {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if len(normalized) == 0 {
		value.enabled = true
		return nil
	}
	enabled, known := toggleLiterals[normalized]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, raw)
	}
	value.enabled = enabled
	return nil
}

// String renders the canonical boolean literal so pflag.GetBool can read it.
func (value *ToggleValue) String() string {
	if value.Enabled() {
		return toggleTrueValue
	}
	return toggleFalseValue
}

// Type reports "bool".
func (value *ToggleValue) Type() string {
	return toggleValueType
}

// AddToggleFlag registers a toggle on flagSet. "--name", "--name=no" and,
// after NormalizeToggleArguments, "--name off" all parse.
func AddToggleFlag(flagSet *pflag.FlagSet, name string, defaultValue bool, usage string) *ToggleValue {
	value := &ToggleValue{enabled: defaultValue}
	placeholder := toggleDisabledPlaceholder
	if defaultValue {
		placeholder = toggleEnabledPlaceholder
	}
	flagSet.Var(value, name, strings.TrimSpace(fmt.Sprintf(toggleUsageTemplate, placeholder, usage)))
	flagSet.Lookup(name).NoOptDefVal = toggleTrueValue
	_ = flagSet.SetAnnotation(name, toggleAnnotationKey, []string{toggleTrueValue})
	return value
}

// NormalizeToggleArguments joins "--toggle value" into "--toggle=value" for
// every toggle registered on root or its subcommands. The following argument
// is consumed only when it is a toggle literal, so "verify --fail-on-change
// /data" keeps /data as the positional root.
func NormalizeToggleArguments(root *cobra.Command, arguments []string) []string {
	toggleNames := collectToggleNames(root)
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminator {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if isToggleArgument(toggleNames, current) && index+1 < len(arguments) {
			if _, literal := toggleLiterals[strings.ToLower(arguments[index+1])]; literal {
				normalized = append(normalized, current+flagValueSeparator+arguments[index+1])
				index++
				continue
			}
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func collectToggleNames(root *cobra.Command) map[string]struct{} {
	toggleNames := make(map[string]struct{})
	if root == nil {
		return toggleNames
	}
	recordToggles := func(flag *pflag.Flag) {
		if _, annotated := flag.Annotations[toggleAnnotationKey]; annotated {
			toggleNames[flag.Name] = struct{}{}
		}
	}
	pending := []*cobra.Command{root}
	for len(pending) > 0 {
		command := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		command.Flags().VisitAll(recordToggles)
		command.PersistentFlags().VisitAll(recordToggles)
		pending = append(pending, command.Commands()...)
	}
	return toggleNames
}

func isToggleArgument(toggleNames map[string]struct{}, argument string) bool {
	if !strings.HasPrefix(argument, longFlagPrefix) || strings.Contains(argument, flagValueSeparator) {
		return false
	}
	_, toggle := toggleNames[strings.TrimPrefix(argument, longFlagPrefix)]
	return toggle
}
