package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choiceValueType          = "string"
	choiceSeparator          = "|"
	choiceListSeparator      = ", "
	choiceUsageTemplate      = "`<%s>` %s"
	choiceParseErrorTemplate = "invalid value %q: expected one of %s"
)

// ChoiceValue is a string flag value restricted to a fixed set of choices,
// matched case-insensitively and stored in the spelling the choice was declared with.
type ChoiceValue struct {
	selected string
	choices  []string
}

// NewChoiceValue constructs a ChoiceValue. An empty defaultChoice means
// "not set" and lets configuration supply the value.
func NewChoiceValue(defaultChoice string, choices ...string) *ChoiceValue {
	return &ChoiceValue{selected: defaultChoice, choices: choices}
}

// Set selects the choice matching raw.
func (value *ChoiceValue) Set(raw string) error {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, choice := range value.choices {
		if strings.ToLower(choice) == normalized {
			value.selected = choice
			return nil
		}
	}
	return fmt.Errorf(choiceParseErrorTemplate, raw, strings.Join(value.choices, choiceListSeparator))
}

// String returns the selected choice.
func (value *ChoiceValue) String() string {
	if value == nil {
		return ""
	}
	return value.selected
}

// Type reports "string" so pflag.GetString can read the value.
func (value *ChoiceValue) Type() string {
	return choiceValueType
}

// AddChoiceFlag registers a choice flag whose usage lists the choices with
// the effective default capitalized.
func AddChoiceFlag(flagSet *pflag.FlagSet, name string, defaultChoice string, choices []string, description string) *ChoiceValue {
	value := NewChoiceValue("", choices...)
	flagSet.Var(value, name, FormatChoiceUsage(defaultChoice, choices, description))
	return value
}

// FormatChoiceUsage renders "`<a|B|c>` description" with the default capitalized.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	rendered := make([]string, 0, len(choices))
	for _, choice := range choices {
		if strings.EqualFold(choice, defaultChoice) {
			choice = strings.ToUpper(choice)
		}
		rendered = append(rendered, choice)
	}
	return strings.TrimSpace(fmt.Sprintf(choiceUsageTemplate, strings.Join(rendered, choiceSeparator), description))
}
