// Package pathutils expands user supplied paths from configuration files and flags.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	homeShortcutConstant       = "~"
	environmentReferencePrefix = "$"
	slashSeparatorConstant     = "/"
)

// HomeDirectoryProvider resolves the current user's home directory.
type HomeDirectoryProvider func() (string, error)

// EnvironmentLookup reports the value of an environment variable.
type EnvironmentLookup func(name string) (string, bool)

// Expander resolves $NAME references and a leading "~" in configured paths,
// so a baseline can live at "${XDG_DATA_HOME}/forensix/baseline.json" or
// "~/cases/baseline.json".
type Expander struct {
	homeDirectoryProvider HomeDirectoryProvider
	lookupEnvironment     EnvironmentLookup
	homeDirectoryOnce     sync.Once
	homeDirectory         string
}

// NewExpander constructs an Expander reading the process environment.
func NewExpander() *Expander {
	return NewExpanderWith(os.UserHomeDir, os.LookupEnv)
}

// NewExpanderWith constructs an Expander with explicit lookups. Nil values
// fall back to the process environment.
func NewExpanderWith(provider HomeDirectoryProvider, lookup EnvironmentLookup) *Expander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Expander{homeDirectoryProvider: provider, lookupEnvironment: lookup}
}

// Expand substitutes $NAME and ${NAME}; unset names are left as $NAME. A
// leading "~" or "~/" then becomes the home directory. "~user" forms are
// not expanded.
func (expander *Expander) Expand(candidatePath string) string {
	if expander == nil || len(candidatePath) == 0 {
		return candidatePath
	}

	expanded := candidatePath
	if strings.Contains(expanded, environmentReferencePrefix) {
		expanded = os.Expand(expanded, func(name string) string {
			if value, set := expander.lookupEnvironment(name); set {
				return value
			}
			return environmentReferencePrefix + name
		})
	}

	if expanded != homeShortcutConstant &&
		!strings.HasPrefix(expanded, homeShortcutConstant+slashSeparatorConstant) &&
		!strings.HasPrefix(expanded, homeShortcutConstant+string(filepath.Separator)) {
		return expanded
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return expanded
	}
	return filepath.Join(homeDirectory, expanded[len(homeShortcutConstant):])
}

func (expander *Expander) resolveHomeDirectory() string {
	expander.homeDirectoryOnce.Do(func() {
		homeDirectory, lookupError := expander.homeDirectoryProvider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
