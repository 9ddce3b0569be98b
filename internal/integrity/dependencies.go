package integrity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/forensix/internal/baseline"
	"github.com/temirov/forensix/internal/mounts"
	"github.com/temirov/forensix/internal/snapshot"
)

const (
	unsupportedStoreTemplateConstant = "unsupported baseline store %q"
	missingPostgresDSNMessage        = "postgres store requires tools.integrity.postgres_dsn or FORENSIX_TOOLS_INTEGRITY_POSTGRES_DSN"
)

var errMissingPostgresDSN = errors.New(missingPostgresDSNMessage)

// SnapshotBuilder builds a baseline document for a root.
type SnapshotBuilder interface {
	Build(executionContext context.Context, root string) (baseline.Document, error)
}

// MountInspector reports whether a path is a detected FUSE mount.
type MountInspector interface {
	Lookup(executionContext context.Context, mountPoint string) (mounts.Mount, bool)
}

// SnapshotBuilderFactory constructs the snapshot builder for a run.
type SnapshotBuilderFactory func(configuration snapshot.Configuration, logger *zap.Logger) (SnapshotBuilder, error)

// StoreOpener opens the configured baseline store. The returned release function is never nil.
type StoreOpener func(executionContext context.Context, configuration Configuration) (baseline.Store, func(), error)

// DefaultSnapshotBuilderFactory builds snapshots from the operating system filesystem.
func DefaultSnapshotBuilderFactory(configuration snapshot.Configuration, logger *zap.Logger) (SnapshotBuilder, error) {
	return snapshot.NewSnapshotter(configuration, nil, logger)
}

// OpenConfiguredStore opens a file or postgres store according to configuration.
func OpenConfiguredStore(executionContext context.Context, configuration Configuration) (baseline.Store, func(), error) {
	switch configuration.Store {
	case StoreKindFile, "":
		return baseline.NewFileStore(nil), func() {}, nil
	case StoreKindPostgres:
		if len(configuration.PostgresDSN) == 0 {
			return nil, func() {}, errMissingPostgresDSN
		}
		store, pool, openError := baseline.OpenPostgresStore(executionContext, configuration.PostgresDSN)
		if openError != nil {
			return nil, func() {}, openError
		}
		return store, pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf(unsupportedStoreTemplateConstant, configuration.Store)
	}
}
