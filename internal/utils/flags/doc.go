// Package flags provides helpers for registering consistent Cobra flags.
package flags
