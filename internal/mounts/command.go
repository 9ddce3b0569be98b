package mounts

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
	mountsCommandUseConstant       = "mounts"
	mountsCommandShortDescription  = "List detected FUSE mounts"
	mountsCommandLongDescription   = "mounts reads the kernel mount table and df output and lists every FUSE filesystem it finds with its classified type."
	jsonFlagName                   = "json"
	jsonFlagDescription            = "Print mounts as JSON"
	tableHeaderConstant            = "MOUNT POINT\tTYPE\tFUSE TYPE\tSOURCE\tDETECTED BY\n"
	tableRowTemplateConstant       = "%s\t%s\t%s\t%s\t%s\n"
	noMountsMessageConstant        = "No FUSE filesystems detected\n"
	jsonIndentConstant             = "  "
	tableMinimumWidthConstant      = 0
	tableTabWidthConstant          = 4
	tablePaddingConstant           = 2
	tablePaddingCharacterConstant  = ' '
	missingDetectorMessageConstant = "mount detector not configured"
)

var errMissingLister = errors.New(missingDetectorMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Lister reports the detected FUSE mounts.
type Lister interface {
	Detect(executionContext context.Context) []Mount
}

// ListerProvider builds a Lister from the command logger.
type ListerProvider func(logger *zap.Logger) Lister

// CommandBuilder assembles the mounts cobra command.
type CommandBuilder struct {
	LoggerProvider LoggerProvider
	ListerProvider ListerProvider
}

// Build constructs the mounts command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   mountsCommandUseConstant,
		Short: mountsCommandShortDescription,
		Long:  mountsCommandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().Bool(jsonFlagName, false, jsonFlagDescription)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	if builder.ListerProvider == nil {
		return errMissingLister
	}
	lister := builder.ListerProvider(logger)

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	detected := lister.Detect(executionContext)

	asJSON, _ := command.Flags().GetBool(jsonFlagName)
	if asJSON {
		encoder := json.NewEncoder(command.OutOrStdout())
		encoder.SetIndent("", jsonIndentConstant)
		if detected == nil {
			detected = []Mount{}
		}
		return encoder.Encode(detected)
	}
	return renderTable(command, detected)
}

func renderTable(command *cobra.Command, detected []Mount) error {
	if len(detected) == 0 {
		_, writeError := fmt.Fprint(command.OutOrStdout(), noMountsMessageConstant)
		return writeError
	}
	writer := tabwriter.NewWriter(
		command.OutOrStdout(),
		tableMinimumWidthConstant,
		tableTabWidthConstant,
		tablePaddingConstant,
		tablePaddingCharacterConstant,
		0,
	)
	fmt.Fprint(writer, tableHeaderConstant)
	for _, mount := range detected {
		fmt.Fprintf(writer, tableRowTemplateConstant, mount.MountPoint, mount.FilesystemType, mount.FuseType, mount.Source, mount.DetectionMethod)
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
