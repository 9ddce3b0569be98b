// Package utils holds the plumbing shared by forensix commands.
//
// ConfigurationLoader layers the embedded YAML defaults under an optional
// config file and FORENSIX_ environment variables. LoggerFactory builds the
// zap logger, and CommandContextAccessor hands the loaded configuration file
// to subcommands.
package utils
