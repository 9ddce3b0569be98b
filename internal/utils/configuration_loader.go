package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeySeparatorConstant               = "."
	environmentKeySeparatorConstant                 = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

var explicitConfigurationTypes = []string{"yaml", "yml", "json", "toml"}

// ConfigurationLoader layers configuration with viper. Later layers win:
// defaults, the embedded document, the explicit or first discovered
// configuration file, then PREFIX_SECTION_KEY environment variables.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedDocument  []byte
	embeddedType      string
}

// LoadedConfiguration describes where the loaded values came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
	// EnvironmentOverrides lists, sorted, the environment variables that supplied a value.
	EnvironmentOverrides []string
}

// NewConfigurationLoader creates a loader that searches searchPaths for
// configurationName and honors environmentPrefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       slices.Clone(searchPaths),
	}
}

// SetEmbeddedConfiguration stores the built-in document merged beneath any configuration file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(document []byte, documentType string) {
	if loader == nil {
		return
	}
	loader.embeddedDocument = bytes.Clone(document)
	loader.embeddedType = strings.TrimSpace(documentType)
}

// LoadConfiguration decodes the layered configuration into targetConfiguration.
// A missing discovered file is not an error; a missing explicit file is.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := loader.newViper(defaultValues)

	if mergeError := loader.mergeEmbeddedDocument(viperInstance); mergeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	if readError := loader.mergeConfigurationFile(viperInstance, configurationFilePath); readError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
	}
	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(configurationDecodeHook())); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{
		ConfigFileUsed:       viperInstance.ConfigFileUsed(),
		EnvironmentOverrides: loader.environmentOverrides(viperInstance),
	}, nil
}

func (loader *ConfigurationLoader) newViper(defaultValues map[string]any) *viper.Viper {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)
	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	viperInstance.AutomaticEnv()

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}
	return viperInstance
}

func (loader *ConfigurationLoader) mergeEmbeddedDocument(viperInstance *viper.Viper) error {
	if len(loader.embeddedDocument) == 0 {
		return nil
	}
	documentType := loader.embeddedType
	if len(documentType) == 0 {
		documentType = loader.configurationType
	}
	viperInstance.SetConfigType(documentType)
	defer viperInstance.SetConfigType(loader.configurationType)
	return viperInstance.MergeConfig(bytes.NewReader(loader.embeddedDocument))
}

// mergeConfigurationFile decodes an explicit file by its extension, so
// --config case.json is read as JSON.
func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, configurationFilePath string) error {
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
		extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(configurationFilePath), configurationKeySeparatorConstant))
		if slices.Contains(explicitConfigurationTypes, extension) {
			viperInstance.SetConfigType(extension)
		}
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return nil
	}
	var notFoundError viper.ConfigFileNotFoundError
	if len(configurationFilePath) == 0 && errors.As(readError, &notFoundError) {
		return nil
	}
	return readError
}

func (loader *ConfigurationLoader) environmentOverrides(viperInstance *viper.Viper) []string {
	var overrides []string
	for _, key := range viperInstance.AllKeys() {
		environmentName := strings.ToUpper(loader.environmentPrefix + environmentKeySeparatorConstant +
			strings.ReplaceAll(key, configurationKeySeparatorConstant, environmentKeySeparatorConstant))
		if _, set := os.LookupEnv(environmentName); set {
			overrides = append(overrides, environmentName)
		}
	}
	sort.Strings(overrides)
	return overrides
}

// configurationDecodeHook lets environment variables carry comma separated lists.
func configurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	)
}
