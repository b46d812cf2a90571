// Package store manages Scout's SQLite persistence.
//
// The schema enforces the pipeline's idempotence invariants: bronze rows are
// unique by content hash, at most one silver row exists per bronze row, and
// at most one gold prediction exists per silver row. Both the batch driver
// and the online service write through this package; neither holds in-process
// locks because the uniqueness constraints make duplicate work a no-op.
package store
