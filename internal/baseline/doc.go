// Package baseline defines the baseline document captured by a filesystem scan
// and the stores that persist it.
//
// Documents are immutable once built. Store implementations only serialize
// them: FileStore writes JSON or YAML files atomically, and PostgresStore keeps
// named baselines in a PostgreSQL table. A missing baseline is reported through
// ErrNotFound, which callers treat as an expected outcome.
package baseline
