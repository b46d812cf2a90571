// Package dictionary loads and versions the brand matching ruleset.
//
// A dictionary is an ordered set of (name, pattern, weight) entries read from
// a YAML file, with a built-in fallback when the file is missing or invalid.
// Its version is the first 8 hex characters of a SHA-256 over the canonical
// sorted-key JSON serialization of the entries, and is persisted with every
// prediction so results stay reproducible and auditable.
package dictionary
