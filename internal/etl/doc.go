// Package etl implements the medallion pipeline: bronze ingests raw CSV rows
// verbatim with content-hash dedup, silver normalizes their text, and gold
// attaches versioned brand predictions.
//
// Stage state lives entirely in the store. Every stage selects only rows the
// next table does not reference yet, which makes each stage idempotent and
// the whole pipeline resumable after a partial failure.
package etl
