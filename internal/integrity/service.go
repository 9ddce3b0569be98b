package integrity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/baseline"
)

const (
	missingRootMessageConstant      = "verification root is required"
	missingLocatorMessageConstant   = "baseline locator is required"
	missingSnapshotterMessage       = "snapshot builder not configured"
	missingStoreMessageConstant     = "baseline store not configured"
	logMessageRunStarted            = "Verification started"
	logMessageBaselineMissing       = "No baseline found, recording the first one"
	logMessageBaselineCreated       = "Baseline created"
	logMessageVerificationCompleted = "Verification completed"
	logMessageRebaselineStarted     = "Re-baseline started"
	logMessageRebaselineCompleted   = "Re-baseline completed"
	logMessagePersistenceFailed     = "Baseline persistence failed"
	logMessageSnapshotFailed        = "Snapshot failed"
	logFieldRunIdentifierConstant   = "run_id"
	logFieldRootConstant            = "root"
	logFieldBaselineConstant        = "baseline"
	logFieldModeConstant            = "mode"
	logFieldUnchangedCountConstant  = "unchanged"
	logFieldModifiedCountConstant   = "modified"
	logFieldAddedCountConstant      = "new"
	logFieldMissingCountConstant    = "missing"
	logFieldScanErrorCountConstant  = "scan_errors"
	logFieldRecordCountConstant     = "records"
	logFieldReducedConfidenceCount  = "reduced_confidence"
)

var (
	// ErrMissingRoot indicates a request without a root path.
	ErrMissingRoot = errors.New(missingRootMessageConstant)
	// ErrMissingBaselineLocator indicates a request without a baseline locator.
	ErrMissingBaselineLocator = errors.New(missingLocatorMessageConstant)

	errMissingSnapshotter = errors.New(missingSnapshotterMessage)
	errMissingStore       = errors.New(missingStoreMessageConstant)
)

// VerificationRequest names the tree to verify and the baseline to compare against.
type VerificationRequest struct {
	Root            string
	BaselineLocator string
}

// Service coordinates snapshot building, baseline persistence, and comparison.
type Service struct {
	snapshotter      SnapshotBuilder
	store            baseline.Store
	logger           *zap.Logger
	newRunIdentifier func() uuid.UUID
}

// NewService constructs a Service using the provided dependencies.
func NewService(snapshotter SnapshotBuilder, store baseline.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		snapshotter:      snapshotter,
		store:            store,
		logger:           logger,
		newRunIdentifier: uuid.New,
	}
}

// Run verifies request.Root against the stored baseline. When no baseline exists
// the current snapshot is saved and a baseline-created report lists every file
// as new. An existing baseline is never overwritten.
func (service *Service) Run(executionContext context.Context, request VerificationRequest) (Report, error) {
	if validationError := service.validate(request); validationError != nil {
		return Report{}, validationError
	}

	runLogger := service.logger.With(
		zap.String(logFieldRunIdentifierConstant, service.newRunIdentifier().String()),
		zap.String(logFieldRootConstant, request.Root),
		zap.String(logFieldBaselineConstant, request.BaselineLocator),
	)
	runLogger.Info(logMessageRunStarted)

	previous, loadError := service.store.Load(executionContext, request.BaselineLocator)
	switch {
	case errors.Is(loadError, baseline.ErrNotFound):
		runLogger.Info(logMessageBaselineMissing)
		return service.createBaseline(executionContext, runLogger, request)
	case loadError != nil:
		persistenceError := asPersistenceError(loadError, baseline.OperationLoad, request.BaselineLocator)
		runLogger.Error(logMessagePersistenceFailed, zap.Error(persistenceError))
		return Report{}, persistenceError
	}

	current, buildError := service.buildSnapshot(executionContext, runLogger, request.Root)
	if buildError != nil {
		return Report{}, buildError
	}

	report := Diff(previous, current)
	report.Mode = ModeVerification
	report.BaselineLocator = request.BaselineLocator

	service.logReport(runLogger, logMessageVerificationCompleted, report)
	return report, nil
}

// Rebaseline snapshots request.Root and replaces the stored baseline with it.
func (service *Service) Rebaseline(executionContext context.Context, request VerificationRequest) (baseline.Document, error) {
	if validationError := service.validate(request); validationError != nil {
		return baseline.Document{}, validationError
	}

	runLogger := service.logger.With(
		zap.String(logFieldRunIdentifierConstant, service.newRunIdentifier().String()),
		zap.String(logFieldRootConstant, request.Root),
		zap.String(logFieldBaselineConstant, request.BaselineLocator),
	)
	runLogger.Info(logMessageRebaselineStarted)

	document, buildError := service.buildSnapshot(executionContext, runLogger, request.Root)
	if buildError != nil {
		return baseline.Document{}, buildError
	}

	if saveError := service.save(executionContext, runLogger, document, request.BaselineLocator); saveError != nil {
		return baseline.Document{}, saveError
	}

	runLogger.Info(
		logMessageRebaselineCompleted,
		zap.Int(logFieldRecordCountConstant, len(document.Records)),
		zap.Int(logFieldScanErrorCountConstant, len(document.ScanErrors)),
	)
	return document, nil
}

func (service *Service) createBaseline(executionContext context.Context, runLogger *zap.Logger, request VerificationRequest) (Report, error) {
	current, buildError := service.buildSnapshot(executionContext, runLogger, request.Root)
	if buildError != nil {
		return Report{}, buildError
	}

	if saveError := service.save(executionContext, runLogger, current, request.BaselineLocator); saveError != nil {
		return Report{}, saveError
	}

	report := Diff(baseline.Document{}, current)
	report.Mode = ModeBaselineCreated
	report.BaselineLocator = request.BaselineLocator

	service.logReport(runLogger, logMessageBaselineCreated, report)
	return report, nil
}

func (service *Service) buildSnapshot(executionContext context.Context, runLogger *zap.Logger, root string) (baseline.Document, error) {
	document, buildError := service.snapshotter.Build(executionContext, root)
	if buildError != nil {
		runLogger.Error(logMessageSnapshotFailed, zap.Error(buildError))
		return baseline.Document{}, buildError
	}
	return document, nil
}

func (service *Service) save(executionContext context.Context, runLogger *zap.Logger, document baseline.Document, locator string) error {
	saveError := service.store.Save(executionContext, document, locator)
	if saveError == nil {
		return nil
	}
	persistenceError := asPersistenceError(saveError, baseline.OperationSave, locator)
	runLogger.Error(logMessagePersistenceFailed, zap.Error(persistenceError))
	return persistenceError
}

func (service *Service) validate(request VerificationRequest) error {
	if service.snapshotter == nil {
		return errMissingSnapshotter
	}
	if service.store == nil {
		return errMissingStore
	}
	if len(strings.TrimSpace(request.Root)) == 0 {
		return ErrMissingRoot
	}
	if len(strings.TrimSpace(request.BaselineLocator)) == 0 {
		return ErrMissingBaselineLocator
	}
	return nil
}

func (service *Service) logReport(runLogger *zap.Logger, message string, report Report) {
	summary := report.Summary()
	runLogger.Info(
		message,
		zap.String(logFieldModeConstant, string(report.Mode)),
		zap.Int(logFieldUnchangedCountConstant, summary.Unchanged),
		zap.Int(logFieldModifiedCountConstant, summary.Modified),
		zap.Int(logFieldAddedCountConstant, summary.Added),
		zap.Int(logFieldMissingCountConstant, summary.Missing),
		zap.Int(logFieldScanErrorCountConstant, report.ScanErrorCount),
		zap.Int(logFieldReducedConfidenceCount, len(report.ReducedConfidence)),
	)
}

// asPersistenceError keeps store-provided persistence errors and wraps anything else.
func asPersistenceError(cause error, operation baseline.Operation, locator string) error {
	var persistenceError baseline.PersistenceError
	if errors.As(cause, &persistenceError) {
		return cause
	}
	return baseline.PersistenceError{Operation: operation, Locator: locator, Cause: cause}
}
