package baseline

import (
	"context"
	"errors"
	"fmt"
)

const (
	notFoundMessageConstant                 = "baseline not found"
	persistenceErrorTemplateConstant        = "baseline %s failed for %s: %v"
	persistenceErrorNoCauseTemplateConstant = "baseline %s failed for %s"
)

// Operation names the storage action that failed.
type Operation string

// Storage operations reported through PersistenceError.
const (
	OperationLoad Operation = "load"
	OperationSave Operation = "save"
)

// ErrNotFound signals that no baseline exists at the locator.
var ErrNotFound = errors.New(notFoundMessageConstant)

// Store loads and saves baseline documents by locator.
type Store interface {
	Load(executionContext context.Context, locator string) (Document, error)
	Save(executionContext context.Context, document Document, locator string) error
}

// PersistenceError reports a baseline that could not be read or written.
type PersistenceError struct {
	Operation Operation
	Locator   string
	Cause     error
}

// Error describes the failed operation.
func (persistenceError PersistenceError) Error() string {
	if persistenceError.Cause == nil {
		return fmt.Sprintf(persistenceErrorNoCauseTemplateConstant, persistenceError.Operation, persistenceError.Locator)
	}
	return fmt.Sprintf(persistenceErrorTemplateConstant, persistenceError.Operation, persistenceError.Locator, persistenceError.Cause)
}

// Unwrap exposes the underlying cause.
func (persistenceError PersistenceError) Unwrap() error {
	return persistenceError.Cause
}
