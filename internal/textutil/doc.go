// Package textutil provides text normalization used by the silver stage
// before brand matching.
package textutil
