package integrity

import (
	"strings"

	"github.com/temirov/forensix/internal/digest"
	pathutils "github.com/temirov/forensix/internal/utils/path"
)

const (
	configurationKeySeparator   = "."
	rootConfigurationKey        = "root"
	baselineConfigurationKey    = "baseline"
	algorithmsConfigurationKey  = "algorithms"
	workersConfigurationKey     = "workers"
	storeConfigurationKey       = "store"
	excludesConfigurationKey    = "excludes"
	postgresDSNConfigurationKey = "postgres_dsn"
)

var integrityConfigurationPathExpander = pathutils.NewExpander()

// StoreKind selects the baseline persistence backend.
type StoreKind string

// Supported baseline stores.
const (
	StoreKindFile     StoreKind = "file"
	StoreKindPostgres StoreKind = "postgres"
)

const (
	// DefaultBaselineFileLocator is the file store locator used when none is configured.
	DefaultBaselineFileLocator = "forensicx_output/baseline.json"
	// DefaultBaselineName is the postgres store locator used when none is configured.
	DefaultBaselineName = "default"
)

// Configuration captures persistent settings for the integrity commands.
type Configuration struct {
	Root        string    `mapstructure:"root"`
	Baseline    string    `mapstructure:"baseline"`
	Algorithms  []string  `mapstructure:"algorithms"`
	Workers     int       `mapstructure:"workers"`
	Store       StoreKind `mapstructure:"store"`
	Excludes    []string  `mapstructure:"excludes"`
	PostgresDSN string    `mapstructure:"postgres_dsn"`
}

// DefaultConfiguration returns baseline configuration values for the integrity commands.
func DefaultConfiguration() Configuration {
	return Configuration{
		Baseline: DefaultBaselineFileLocator,
		Store:    StoreKindFile,
	}.withDefaultAlgorithms()
}

// DefaultConfigurationValues returns configuration defaults keyed under prefix so
// that every integrity key can be overridden from the environment.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		prefix + configurationKeySeparator + rootConfigurationKey:        defaults.Root,
		prefix + configurationKeySeparator + baselineConfigurationKey:    defaults.Baseline,
		prefix + configurationKeySeparator + algorithmsConfigurationKey:  defaults.Algorithms,
		prefix + configurationKeySeparator + workersConfigurationKey:     defaults.Workers,
		prefix + configurationKeySeparator + storeConfigurationKey:       string(defaults.Store),
		prefix + configurationKeySeparator + excludesConfigurationKey:    []string{},
		prefix + configurationKeySeparator + postgresDSNConfigurationKey: defaults.PostgresDSN,
	}
}

func (configuration Configuration) withDefaultAlgorithms() Configuration {
	defaults := digest.DefaultAlgorithms()
	names := make([]string, 0, len(defaults))
	for _, algorithm := range defaults {
		names = append(names, algorithm.String())
	}
	configuration.Algorithms = names
	return configuration
}

// Sanitize trims configured values, expands home directories and applies defaults.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration

	sanitized.Root = expandPath(configuration.Root)
	sanitized.Store = StoreKind(strings.ToLower(strings.TrimSpace(string(configuration.Store))))
	if len(sanitized.Store) == 0 {
		sanitized.Store = StoreKindFile
	}

	sanitized.Baseline = strings.TrimSpace(configuration.Baseline)
	if sanitized.Store == StoreKindFile {
		sanitized.Baseline = expandPath(sanitized.Baseline)
	}
	if len(sanitized.Baseline) == 0 {
		sanitized.Baseline = DefaultBaselineFileLocator
		if sanitized.Store == StoreKindPostgres {
			sanitized.Baseline = DefaultBaselineName
		}
	}

	sanitized.Algorithms = sanitizeValues(configuration.Algorithms)
	if len(sanitized.Algorithms) == 0 {
		sanitized = sanitized.withDefaultAlgorithms()
	}

	sanitized.Excludes = sanitizeValues(configuration.Excludes)
	sanitized.PostgresDSN = strings.TrimSpace(configuration.PostgresDSN)

	return sanitized
}

func expandPath(rawPath string) string {
	trimmed := strings.TrimSpace(rawPath)
	if len(trimmed) == 0 {
		return ""
	}
	return integrityConfigurationPathExpander.Expand(trimmed)
}

func sanitizeValues(rawValues []string) []string {
	sanitized := make([]string, 0, len(rawValues))
	for _, rawValue := range rawValues {
		trimmed := strings.TrimSpace(rawValue)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}
