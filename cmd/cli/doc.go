// Package cli constructs the forensix command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the integrity and mount detection packages.
package cli
