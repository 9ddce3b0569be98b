package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/execshell"
	"github.com/temirov/forensix/internal/integrity"
	"github.com/temirov/forensix/internal/metadata"
	"github.com/temirov/forensix/internal/mounts"
	"github.com/temirov/forensix/internal/recovery"
	"github.com/temirov/forensix/internal/utils"
	flagutils "github.com/temirov/forensix/internal/utils/flags"
)

const (
	applicationNameConstant                 = "forensix"
	applicationShortDescriptionConstant     = "File integrity baselines, metadata extraction and deleted file recovery"
	applicationLongDescriptionConstant      = "forensix records cryptographic digests of every file under a directory tree and reports how the tree changed since that baseline. It also extracts file and filesystem metadata and recovers deleted files from filesystem images."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	toolsConfigurationKeyConstant           = "tools"
	integrityConfigurationKeyConstant       = toolsConfigurationKeyConstant + ".integrity"
	environmentPrefixConstant               = "FORENSIX"
	environmentFileNameConstant             = ".env"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationDirectoryNameConstant      = "forensix"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	environmentOverridesFieldConstant       = "environment_overrides"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	environmentLoadErrorTemplateConstant    = "unable to load %s: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "forensix CLI executed"
	rootCommandDebugMessageConstant         = "forensix CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	versionTemplateConstant                 = "forensix version: {{.Version}}\n"
	developmentVersionConstant              = "(devel)"
	exitCodeFailureConstant                 = 1
	exitCodeChangesDetectedConstant         = 2
	exitCodeInterruptedConstant             = 130
)

var errLoggerNotInitialized = errors.New(loggerNotInitializedMessageConstant)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Integrity integrity.Configuration `mapstructure:"integrity"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	environmentFilePath    string
	logLevelFlagValue      string
	logFormatFlag          *flagutils.ChoiceValue
	commandContextAccessor utils.CommandContextAccessor
	commandRunner          execshell.CommandRunner
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		environmentFilePath:    environmentFileNameConstant,
		commandContextAccessor: utils.NewCommandContextAccessor(),
		commandRunner:          execshell.NewOSCommandRunner(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       resolveVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetVersionTemplate(versionTemplateConstant)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	application.logFormatFlag = flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		logFormatFlagNameConstant,
		string(utils.LogFormatStructured),
		[]string{string(utils.LogFormatStructured), string(utils.LogFormatConsole)},
		logFormatFlagUsageConstant,
	)

	integrityBuilder := integrity.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() integrity.Configuration {
			return application.configuration.Tools.Integrity
		},
		MountInspector: applicationMountInspector{application: application},
	}
	verifyCommand, verifyBuildError := integrityBuilder.Build()
	if verifyBuildError == nil {
		cobraCommand.AddCommand(verifyCommand)
	}
	baselineCommand, baselineBuildError := integrityBuilder.BuildBaseline()
	if baselineBuildError == nil {
		cobraCommand.AddCommand(baselineCommand)
	}

	mountsBuilder := mounts.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ListerProvider: func(logger *zap.Logger) mounts.Lister {
			return application.mountDetector(logger)
		},
	}
	mountsCommand, mountsBuildError := mountsBuilder.Build()
	if mountsBuildError == nil {
		cobraCommand.AddCommand(mountsCommand)
	}

	recoverBuilder := recovery.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		RunnerProvider: application.recoverer,
	}
	recoverCommand, recoverBuildError := recoverBuilder.Build()
	if recoverBuildError == nil {
		cobraCommand.AddCommand(recoverCommand)
	}

	metadataBuilder := metadata.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ExtractorProvider: func(logger *zap.Logger) metadata.Extractor {
			return metadata.NewCollector(nil, nil, nil, logger)
		},
	}
	metadataCommand, metadataBuildError := metadataBuilder.Build()
	if metadataBuildError == nil {
		cobraCommand.AddCommand(metadataCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the command hierarchy with a background context.
func (application *Application) Execute() error {
	return application.ExecuteContext(context.Background())
}

// ExecuteContext runs the command hierarchy under executionContext and flushes the logger.
func (application *Application) ExecuteContext(executionContext context.Context) error {
	executionError := application.rootCommand.ExecuteContext(executionContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application and runs it with the process arguments.
// SIGINT and SIGTERM cancel the context so hashing workers and Sleuth Kit
// processes stop.
func Execute() error {
	executionContext, stop := newSignalContext(context.Background())
	defer stop()

	application := NewApplication()
	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(application.rootCommand, os.Args[1:]))
	return application.ExecuteContext(executionContext)
}

// ExitCode maps an Execute error to a process exit status: 2 when verify
// found changes under --fail-on-change and 130 after an interrupt.
func ExitCode(executionError error) int {
	switch {
	case executionError == nil:
		return 0
	case errors.Is(executionError, integrity.ErrChangesDetected):
		return exitCodeChangesDetectedConstant
	case errors.Is(executionError, context.Canceled):
		return exitCodeInterruptedConstant
	default:
		return exitCodeFailureConstant
	}
}

func newSignalContext(parentContext context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parentContext, os.Interrupt, syscall.SIGTERM)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if loadError := loadEnvironmentFile(application.environmentFilePath); loadError != nil {
		return fmt.Errorf(environmentLoadErrorTemplateConstant, application.environmentFilePath, loadError)
	}

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range integrity.DefaultConfigurationValues(integrityConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlag.String()
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Strings(environmentOverridesFieldConstant, application.configurationMetadata.EnvironmentOverrides),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFile(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errLoggerNotInitialized
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

// mountDetector builds a detector reading /proc/mounts and running df through the shell executor.
func (application *Application) mountDetector(logger *zap.Logger) *mounts.Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	var diskFreeExecutor mounts.DiskFreeExecutor
	if shellExecutor, executorError := execshell.NewShellExecutor(logger, application.commandRunner); executorError == nil {
		diskFreeExecutor = shellExecutor
	}
	return mounts.NewDetector(nil, diskFreeExecutor, logger)
}

// recoverer builds a recovery runner that invokes fls and icat through the shell executor.
func (application *Application) recoverer(logger *zap.Logger) (recovery.Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, application.commandRunner)
	if executorError != nil {
		return nil, executorError
	}
	recoverer, recovererError := recovery.NewRecoverer(shellExecutor, nil, logger)
	if recovererError != nil {
		return nil, recovererError
	}
	return recoverer, nil
}

type applicationMountInspector struct {
	application *Application
}

func (inspector applicationMountInspector) Lookup(executionContext context.Context, mountPoint string) (mounts.Mount, bool) {
	return inspector.application.mountDetector(inspector.application.logger).Lookup(executionContext, mountPoint)
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

// loadEnvironmentFile exports variables from an optional dotenv file without
// overriding variables already present in the environment.
func loadEnvironmentFile(environmentFilePath string) error {
	if len(environmentFilePath) == 0 {
		return nil
	}
	if _, statError := os.Stat(environmentFilePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil
		}
		return statError
	}
	return godotenv.Load(environmentFilePath)
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, configurationDirectoryNameConstant))
	}
	return searchPaths
}

func resolveVersion() string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 {
		return developmentVersionConstant
	}
	return buildInformation.Main.Version
}
