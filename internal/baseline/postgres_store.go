package baseline

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	upsertBaselineQueryConstant = `INSERT INTO forensix_baselines (id, name, root, created_at, document)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET root = EXCLUDED.root, created_at = EXCLUDED.created_at, document = EXCLUDED.document`
	selectBaselineQueryConstant = `SELECT document FROM forensix_baselines WHERE name = $1`
	missingPoolMessageConstant  = "postgres connection pool not configured"
)

//go:embed schema.sql
var baselineSchemaSQL string

var errMissingPool = errors.New(missingPoolMessageConstant)

// Database is the subset of pgxpool.Pool used by PostgresStore.
type Database interface {
	Exec(executionContext context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(executionContext context.Context, sql string, arguments ...any) pgx.Row
}

// PostgresStore keeps named baselines in PostgreSQL. The locator is the baseline name.
type PostgresStore struct {
	database      Database
	newIdentifier func() uuid.UUID
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(database Database) *PostgresStore {
	return &PostgresStore{database: database, newIdentifier: uuid.New}
}

// OpenPostgresStore connects to dsn, ensures the schema exists, and returns the store with its pool.
// Callers close the pool when finished.
func OpenPostgresStore(executionContext context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, connectError := pgxpool.New(executionContext, dsn)
	if connectError != nil {
		return nil, nil, connectError
	}

	store := NewPostgresStore(pool)
	if schemaError := store.EnsureSchema(executionContext); schemaError != nil {
		pool.Close()
		return nil, nil, schemaError
	}
	return store, pool, nil
}

// EnsureSchema creates the baseline table when missing.
func (store *PostgresStore) EnsureSchema(executionContext context.Context) error {
	if store.database == nil {
		return errMissingPool
	}
	_, execError := store.database.Exec(executionContext, baselineSchemaSQL)
	return execError
}

// Load fetches the baseline stored under locator.
func (store *PostgresStore) Load(executionContext context.Context, locator string) (Document, error) {
	if len(strings.TrimSpace(locator)) == 0 {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: errEmptyLocator}
	}
	if store.database == nil {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: errMissingPool}
	}

	var payload []byte
	scanError := store.database.QueryRow(executionContext, selectBaselineQueryConstant, locator).Scan(&payload)
	if scanError != nil {
		if errors.Is(scanError, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: scanError}
	}

	var document Document
	if decodeError := json.Unmarshal(payload, &document); decodeError != nil {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: decodeError}
	}
	return document, nil
}

// Save upserts the document under locator.
func (store *PostgresStore) Save(executionContext context.Context, document Document, locator string) error {
	if len(strings.TrimSpace(locator)) == 0 {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: errEmptyLocator}
	}
	if store.database == nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: errMissingPool}
	}

	payload, encodeError := json.Marshal(document)
	if encodeError != nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: encodeError}
	}

	_, execError := store.database.Exec(
		executionContext,
		upsertBaselineQueryConstant,
		store.newIdentifier(),
		locator,
		document.Root,
		document.Timestamp,
		payload,
	)
	if execError != nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: execError}
	}
	return nil
}
