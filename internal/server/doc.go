// Package server exposes brand prediction over HTTP.
//
// The online path shares the matcher and the gold prediction store with the
// batch pipeline: identical (text, dictionary version) pairs produce
// bit-identical predictions on both paths, and persisted online predictions
// are indistinguishable from batch ones to downstream consumers.
package server
