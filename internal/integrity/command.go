package integrity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/digest"
	"github.com/temirov/forensix/internal/snapshot"
	"github.com/temirov/forensix/internal/utils"
	flagutils "github.com/temirov/forensix/internal/utils/flags"
)

const (
	verifyCommandUseConstant              = "verify [root]"
	verifyCommandShortDescription         = "Verify a directory tree against its baseline"
	verifyCommandLongDescription          = "verify hashes every regular file under the root and compares the result with the stored baseline. The first run records the baseline instead."
	baselineCommandUseConstant            = "baseline [root]"
	baselineCommandShortDescription       = "Record a new baseline"
	baselineCommandLongDescription        = "baseline hashes every regular file under the root and replaces the stored baseline with the result."
	rootFlagName                          = "root"
	rootFlagDescription                   = "Directory tree to scan"
	baselineFlagName                      = "baseline"
	baselineFlagDescription               = "Baseline locator: a file path for the file store or a name for the postgres store"
	algorithmsFlagName                    = "algorithms"
	algorithmsFlagDescriptionTemplate     = "Digest algorithms (%s)"
	workersFlagName                       = "workers"
	workersFlagDescription                = "Concurrent hashing workers (0 uses one per CPU)"
	storeFlagName                         = "store"
	storeFlagDescription                  = "Baseline store"
	reportFlagName                        = "report"
	reportFlagDescription                 = "Write the verification report as JSON to this file"
	excludeFlagName                       = "exclude"
	excludeFlagDescription                = "Glob pattern of paths to skip, matched against relative paths and base names"
	failOnChangeFlagName                  = "fail-on-change"
	failOnChangeFlagDescription           = "Exit with an error when verification finds any change"
	changesDetectedMessageConstant        = "integrity changes detected"
	tooManyArgumentsMessageConstant       = "at most one root may be given"
	conflictingRootTemplateConstant       = "root given both as argument %q and flag %q"
	commandExecutionErrorTemplateConstant = "%s failed: %w"
	reportWriteErrorTemplateConstant      = "write report %s: %w"
	baselineRecordedTemplateConstant      = "Baseline recorded at %s: %d file(s), %d scan error(s)\n"
	logMessageMountNotDetected            = "Root is not a detected FUSE mount; continuing"
	logMessageMountDetected               = "Root is a FUSE mount"
	logFieldFuseTypeConstant              = "fuse_type"
	logFieldDetectionMethodConstant       = "detection_method"
	reportFilePermissionsConstant         = 0o644
	reportDirectoryPermissionsConstant    = 0o755
	parentDirectoryPrefixConstant         = ".."
	verifyOperationName                   = "verify"
	baselineOperationName                 = "baseline"
)

var (
	// ErrChangesDetected is returned by verify with --fail-on-change when the report has changes.
	ErrChangesDetected = errors.New(changesDetectedMessageConstant)

	errTooManyArguments = errors.New(tooManyArgumentsMessageConstant)
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current integrity configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the verify and baseline cobra commands.
type CommandBuilder struct {
	LoggerProvider         LoggerProvider
	ConfigurationProvider  ConfigurationProvider
	SnapshotBuilderFactory SnapshotBuilderFactory
	StoreOpener            StoreOpener
	MountInspector         MountInspector
}

type commandOptions struct {
	configuration Configuration
	algorithms    []digest.Algorithm
	reportPath    string
	failOnChange  bool
	artifactPaths []string
}

// Build constructs the verify command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   verifyCommandUseConstant,
		Short: verifyCommandShortDescription,
		Long:  verifyCommandLongDescription,
		RunE:  builder.runVerify,
	}
	builder.registerFlags(command)
	command.Flags().String(reportFlagName, "", reportFlagDescription)
	flagutils.AddToggleFlag(command.Flags(), failOnChangeFlagName, false, failOnChangeFlagDescription)
	return command, nil
}

// BuildBaseline constructs the baseline command.
func (builder *CommandBuilder) BuildBaseline() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   baselineCommandUseConstant,
		Short: baselineCommandShortDescription,
		Long:  baselineCommandLongDescription,
		RunE:  builder.runBaseline,
	}
	builder.registerFlags(command)
	return command, nil
}

func (builder *CommandBuilder) registerFlags(command *cobra.Command) {
	command.Flags().String(rootFlagName, "", rootFlagDescription)
	command.Flags().String(baselineFlagName, "", baselineFlagDescription)
	command.Flags().StringSlice(
		algorithmsFlagName,
		nil,
		fmt.Sprintf(algorithmsFlagDescriptionTemplate, strings.Join(digest.SupportedAlgorithmNames(), ", ")),
	)
	command.Flags().Int(workersFlagName, 0, workersFlagDescription)
	flagutils.AddChoiceFlag(
		command.Flags(),
		storeFlagName,
		string(StoreKindFile),
		[]string{string(StoreKindFile), string(StoreKindPostgres)},
		storeFlagDescription,
	)
	command.Flags().StringSlice(excludeFlagName, nil, excludeFlagDescription)
}

func (builder *CommandBuilder) runVerify(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	executionContext := resolveContext(command)

	service, release, serviceError := builder.resolveService(executionContext, options, logger)
	if serviceError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, verifyOperationName, serviceError)
	}
	defer release()

	builder.inspectMount(executionContext, logger, options.configuration.Root)

	report, runError := service.Run(executionContext, VerificationRequest{
		Root:            options.configuration.Root,
		BaselineLocator: options.configuration.Baseline,
	})
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, verifyOperationName, runError)
	}
	if configurationFile, recorded := utils.NewCommandContextAccessor().ConfigurationFile(executionContext); recorded {
		report.ConfigurationFile = configurationFile
	}

	if renderError := RenderReport(command.OutOrStdout(), report, IsTerminal(command.OutOrStdout())); renderError != nil {
		return renderError
	}

	if len(options.reportPath) > 0 {
		if writeError := writeReportFile(options.reportPath, report); writeError != nil {
			return fmt.Errorf(reportWriteErrorTemplateConstant, options.reportPath, writeError)
		}
	}

	if options.failOnChange && report.Mode == ModeVerification && report.HasChanges() {
		return ErrChangesDetected
	}
	return nil
}

func (builder *CommandBuilder) runBaseline(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command, arguments)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	executionContext := resolveContext(command)

	service, release, serviceError := builder.resolveService(executionContext, options, logger)
	if serviceError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, baselineOperationName, serviceError)
	}
	defer release()

	document, rebaselineError := service.Rebaseline(executionContext, VerificationRequest{
		Root:            options.configuration.Root,
		BaselineLocator: options.configuration.Baseline,
	})
	if rebaselineError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, baselineOperationName, rebaselineError)
	}

	_, printError := fmt.Fprintf(
		command.OutOrStdout(),
		baselineRecordedTemplateConstant,
		options.configuration.Baseline,
		len(document.Records),
		len(document.ScanErrors),
	)
	return printError
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) (commandOptions, error) {
	if len(arguments) > 1 {
		return commandOptions{}, errTooManyArguments
	}

	configuration := builder.resolveConfiguration()

	if command.Flags().Changed(rootFlagName) {
		rootValue, _ := command.Flags().GetString(rootFlagName)
		configuration.Root = rootValue
	}
	if len(arguments) == 1 {
		if command.Flags().Changed(rootFlagName) && arguments[0] != configuration.Root {
			return commandOptions{}, fmt.Errorf(conflictingRootTemplateConstant, arguments[0], configuration.Root)
		}
		configuration.Root = arguments[0]
	}
	if command.Flags().Changed(storeFlagName) {
		storeValue, _ := command.Flags().GetString(storeFlagName)
		configuration.Store = StoreKind(storeValue)
	}
	if command.Flags().Changed(baselineFlagName) {
		baselineValue, _ := command.Flags().GetString(baselineFlagName)
		configuration.Baseline = baselineValue
	} else if StoreKind(strings.ToLower(strings.TrimSpace(string(configuration.Store)))) == StoreKindPostgres &&
		strings.TrimSpace(configuration.Baseline) == DefaultBaselineFileLocator {
		configuration.Baseline = DefaultBaselineName
	}
	if command.Flags().Changed(algorithmsFlagName) {
		algorithmValues, _ := command.Flags().GetStringSlice(algorithmsFlagName)
		configuration.Algorithms = algorithmValues
	}
	if command.Flags().Changed(workersFlagName) {
		workersValue, _ := command.Flags().GetInt(workersFlagName)
		configuration.Workers = workersValue
	}
	if command.Flags().Changed(excludeFlagName) {
		excludeValues, _ := command.Flags().GetStringSlice(excludeFlagName)
		configuration.Excludes = append(append([]string{}, configuration.Excludes...), excludeValues...)
	}

	configuration = configuration.Sanitize()
	if len(configuration.Root) == 0 {
		return commandOptions{}, ErrMissingRoot
	}

	algorithms, algorithmError := digest.ParseAlgorithms(configuration.Algorithms)
	if algorithmError != nil {
		return commandOptions{}, algorithmError
	}

	reportPath := ""
	if reportFlag := command.Flags().Lookup(reportFlagName); reportFlag != nil {
		reportPath = strings.TrimSpace(reportFlag.Value.String())
	}

	var artifactPaths []string
	if configuration.Store == StoreKindFile {
		artifactPaths = appendPathUnderRoot(artifactPaths, configuration.Root, configuration.Baseline)
	}
	if len(reportPath) > 0 {
		artifactPaths = appendPathUnderRoot(artifactPaths, configuration.Root, reportPath)
	}

	failOnChange := false
	if command.Flags().Lookup(failOnChangeFlagName) != nil {
		failOnChange, _ = command.Flags().GetBool(failOnChangeFlagName)
	}

	return commandOptions{
		configuration: configuration,
		algorithms:    algorithms,
		reportPath:    reportPath,
		failOnChange:  failOnChange,
		artifactPaths: artifactPaths,
	}, nil
}

func (builder *CommandBuilder) resolveService(executionContext context.Context, options commandOptions, logger *zap.Logger) (*Service, func(), error) {
	factory := builder.SnapshotBuilderFactory
	if factory == nil {
		factory = DefaultSnapshotBuilderFactory
	}

	snapshotBuilder, snapshotError := factory(snapshot.Configuration{
		Algorithms: options.algorithms,
		Workers:    options.configuration.Workers,
		Excludes:   options.configuration.Excludes,
		SkipPaths:  options.artifactPaths,
	}, logger)
	if snapshotError != nil {
		return nil, func() {}, snapshotError
	}

	opener := builder.StoreOpener
	if opener == nil {
		opener = OpenConfiguredStore
	}

	store, release, storeError := opener(executionContext, options.configuration)
	if storeError != nil {
		return nil, func() {}, storeError
	}
	if release == nil {
		release = func() {}
	}

	return NewService(snapshotBuilder, store, logger), release, nil
}

func (builder *CommandBuilder) inspectMount(executionContext context.Context, logger *zap.Logger, root string) {
	if builder.MountInspector == nil {
		return
	}
	mount, detected := builder.MountInspector.Lookup(executionContext, root)
	if !detected {
		logger.Warn(logMessageMountNotDetected, zap.String(logFieldRootConstant, root))
		return
	}
	logger.Info(
		logMessageMountDetected,
		zap.String(logFieldRootConstant, root),
		zap.String(logFieldFuseTypeConstant, string(mount.FuseType)),
		zap.String(logFieldDetectionMethodConstant, string(mount.DetectionMethod)),
	)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}

func resolveContext(command *cobra.Command) context.Context {
	if command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}

// appendPathUnderRoot adds target as a literal root-relative path when it lives inside root.
// The result is compared exactly, never as a glob.
func appendPathUnderRoot(paths []string, root string, target string) []string {
	absoluteRoot, rootError := filepath.Abs(root)
	if rootError != nil {
		return paths
	}
	absoluteTarget, targetError := filepath.Abs(target)
	if targetError != nil {
		return paths
	}
	relativePath, relativeError := filepath.Rel(absoluteRoot, absoluteTarget)
	if relativeError != nil || relativePath == "." || relativePath == parentDirectoryPrefixConstant ||
		strings.HasPrefix(relativePath, parentDirectoryPrefixConstant+string(filepath.Separator)) {
		return paths
	}
	return append(paths, filepath.ToSlash(relativePath))
}

func writeReportFile(reportPath string, report Report) error {
	if directory := filepath.Dir(reportPath); len(directory) > 0 {
		if mkdirError := os.MkdirAll(directory, reportDirectoryPermissionsConstant); mkdirError != nil {
			return mkdirError
		}
	}
	reportFile, createError := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, reportFilePermissionsConstant)
	if createError != nil {
		return createError
	}
	if encodeError := WriteReport(reportFile, report); encodeError != nil {
		_ = reportFile.Close()
		return encodeError
	}
	return reportFile.Close()
}
