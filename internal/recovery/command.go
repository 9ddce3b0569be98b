package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	recoverCommandUseConstant        = "recover <image-or-device>"
	recoverCommandShortDescription   = "Recover deleted files from a filesystem image"
	recoverCommandLongDescription    = "recover lists deleted entries with fls and extracts each deleted regular file with icat into a recovered_<source> directory. The Sleuth Kit must be installed."
	outputDirectoryFlagName          = "output-dir"
	outputDirectoryFlagDescription   = "Directory that receives the recovered_<source> folder"
	jsonFlagName                     = "json"
	jsonFlagDescription              = "Print the recovery report as JSON"
	summaryTemplateConstant          = "Recovered %d of %d deleted file(s) from %s into %s\n"
	skippedTemplateConstant          = "Skipped %d deleted entries that are not regular files\n"
	tableHeaderConstant              = "ADDRESS\tSIZE\tNAME\tRESULT\n"
	tableRowTemplateConstant         = "%s\t%d\t%s\t%s\n"
	recoveredResultConstant          = "recovered"
	jsonIndentConstant               = "  "
	tableMinimumWidthConstant        = 0
	tableTabWidthConstant            = 4
	tablePaddingConstant             = 2
	tablePaddingCharacterConstant    = ' '
	missingRecovererMessageConstant  = "recoverer not configured"
	recoveryFailuresTemplateConstant = "%d deleted file(s) could not be recovered"
	recoverCommandArgumentCount      = 1
)

var errMissingRecoverer = errors.New(missingRecovererMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Runner performs one recovery.
type Runner interface {
	Recover(executionContext context.Context, request Request) (Report, error)
}

// RunnerProvider builds a Runner from the command logger.
type RunnerProvider func(logger *zap.Logger) (Runner, error)

// CommandBuilder assembles the recover cobra command.
type CommandBuilder struct {
	LoggerProvider LoggerProvider
	RunnerProvider RunnerProvider
}

// Build constructs the recover command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   recoverCommandUseConstant,
		Short: recoverCommandShortDescription,
		Long:  recoverCommandLongDescription,
		Args:  cobra.ExactArgs(recoverCommandArgumentCount),
		RunE:  builder.run,
	}
	command.Flags().String(outputDirectoryFlagName, DefaultOutputDirectory, outputDirectoryFlagDescription)
	command.Flags().Bool(jsonFlagName, false, jsonFlagDescription)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	if builder.RunnerProvider == nil {
		return errMissingRecoverer
	}
	runner, runnerError := builder.RunnerProvider(logger)
	if runnerError != nil {
		return runnerError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	outputDirectory, _ := command.Flags().GetString(outputDirectoryFlagName)

	report, recoverError := runner.Recover(executionContext, Request{Source: arguments[0], OutputDirectory: outputDirectory})
	if recoverError != nil {
		return recoverError
	}

	asJSON, _ := command.Flags().GetBool(jsonFlagName)
	if asJSON {
		encoder := json.NewEncoder(command.OutOrStdout())
		encoder.SetIndent("", jsonIndentConstant)
		if encodeError := encoder.Encode(report); encodeError != nil {
			return encodeError
		}
	} else if renderError := renderReport(command, report); renderError != nil {
		return renderError
	}

	if failed := report.FailedCount(); failed > 0 {
		return fmt.Errorf(recoveryFailuresTemplateConstant, failed)
	}
	return nil
}

func renderReport(command *cobra.Command, report Report) error {
	output := command.OutOrStdout()
	failed := report.FailedCount()
	fmt.Fprintf(output, summaryTemplateConstant, len(report.RecoveredFiles)-failed, len(report.RecoveredFiles), report.Source, report.OutputDirectory)
	if report.Skipped > 0 {
		fmt.Fprintf(output, skippedTemplateConstant, report.Skipped)
	}
	if len(report.RecoveredFiles) == 0 {
		return nil
	}

	writer := tabwriter.NewWriter(
		output,
		tableMinimumWidthConstant,
		tableTabWidthConstant,
		tablePaddingConstant,
		tablePaddingCharacterConstant,
		0,
	)
	fmt.Fprint(writer, tableHeaderConstant)
	for _, recovered := range report.RecoveredFiles {
		result := recoveredResultConstant
		if len(recovered.Error) > 0 {
			result = recovered.Error
		}
		fmt.Fprintf(writer, tableRowTemplateConstant, recovered.Address, recovered.Size, recovered.Name, result)
	}
	return writer.Flush()
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
