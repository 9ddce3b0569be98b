package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
)

const (
	diskFreeFilesystemTypeFlagConstant        = "-T"
	diskFreeStartTemplateConstant             = "Listing mounted filesystems%s"
	diskFreeSuccessTemplateConstant           = "Listed mounted filesystems%s"
	diskFreeFailureTemplateConstant           = "Failed to list mounted filesystems%s (exit code %d%s)"
	diskFreeExecutionFailureTemplateConstant  = "Unable to list mounted filesystems%s: %s"
	diskFreeFilesystemTypeSuffixConstant      = " with their types"
	diskFreeTargetSuffixTemplateConstant      = " for %s"
	diskFreeTypedTargetSuffixTemplateConstant = " with their types for %s"
)

const (
	fileListStartTemplateConstant            = "Listing deleted entries in %s"
	fileListSuccessTemplateConstant          = "Listed deleted entries in %s"
	fileListFailureTemplateConstant          = "Failed to list deleted entries in %s (exit code %d%s)"
	fileListExecutionFailureTemplateConstant = "Unable to list deleted entries in %s: %s"
	inodeCatStartTemplateConstant            = "Extracting inode %s from %s"
	inodeCatSuccessTemplateConstant          = "Extracted inode %s from %s"
	inodeCatFailureTemplateConstant          = "Failed to extract inode %s from %s (exit code %d%s)"
	inodeCatExecutionFailureTemplateConstant = "Unable to extract inode %s from %s: %s"
	unknownOperandConstant                   = "?"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandDiskFree:
		return formatter.describeDiskFreeMessage(command, result, failure, stage)
	case CommandFileList:
		return formatter.describeFileListMessage(command, result, failure, stage)
	case CommandInodeCat:
		return formatter.describeInodeCatMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeDiskFreeMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	suffix := formatter.describeDiskFreeScope(command.Details.Arguments)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(diskFreeStartTemplateConstant, suffix)
	case messageStageSuccess:
		return fmt.Sprintf(diskFreeSuccessTemplateConstant, suffix)
	case messageStageFailure:
		return fmt.Sprintf(diskFreeFailureTemplateConstant, suffix, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(diskFreeExecutionFailureTemplateConstant, suffix, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeDiskFreeScope(arguments []string) string {
	includesTypes := containsArgument(arguments, diskFreeFilesystemTypeFlagConstant)
	target := formatter.extractFirstNonFlagArgument(arguments)
	switch {
	case includesTypes && len(target) > 0:
		return fmt.Sprintf(diskFreeTypedTargetSuffixTemplateConstant, target)
	case includesTypes:
		return diskFreeFilesystemTypeSuffixConstant
	case len(target) > 0:
		return fmt.Sprintf(diskFreeTargetSuffixTemplateConstant, target)
	default:
		return emptyStringConstant
	}
}

// describeFileListMessage names the image or device, the last operand of fls.
func (formatter CommandMessageFormatter) describeFileListMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	operands := formatter.extractOperands(command.Details.Arguments)
	source := unknownOperandConstant
	if len(operands) > 0 {
		source = operands[len(operands)-1]
	}
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(fileListStartTemplateConstant, source)
	case messageStageSuccess:
		return fmt.Sprintf(fileListSuccessTemplateConstant, source)
	case messageStageFailure:
		return fmt.Sprintf(fileListFailureTemplateConstant, source, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(fileListExecutionFailureTemplateConstant, source, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

// describeInodeCatMessage expects icat operands in the order image, inode.
func (formatter CommandMessageFormatter) describeInodeCatMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	operands := formatter.extractOperands(command.Details.Arguments)
	source, inode := unknownOperandConstant, unknownOperandConstant
	if len(operands) > 0 {
		source = operands[0]
	}
	if len(operands) > 1 {
		inode = operands[1]
	}
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(inodeCatStartTemplateConstant, inode, source)
	case messageStageSuccess:
		return fmt.Sprintf(inodeCatSuccessTemplateConstant, inode, source)
	case messageStageFailure:
		return fmt.Sprintf(inodeCatFailureTemplateConstant, inode, source, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(inodeCatExecutionFailureTemplateConstant, inode, source, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, describeCommand(command), workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	operands := formatter.extractOperands(arguments)
	if len(operands) == 0 {
		return emptyStringConstant
	}
	return operands[0]
}

func (formatter CommandMessageFormatter) extractOperands(arguments []string) []string {
	operands := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 || strings.HasPrefix(trimmedArgument, "-") {
			continue
		}
		operands = append(operands, trimmedArgument)
	}
	return operands
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}
