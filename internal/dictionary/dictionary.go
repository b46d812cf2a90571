package dictionary

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Entry describes a single brand matching rule.
type Entry struct {
	Name    string
	Pattern string
	Weight  float64

	compiled *regexp.Regexp
}

// Compiled returns the compiled pattern for the entry, or nil when the
// configured pattern failed to compile at load time.
func (e *Entry) Compiled() *regexp.Regexp {
	return e.compiled
}

// Dictionary is an immutable, ordered set of brand matching rules. Order is
// the tie-break for equally confident matches: the first entry wins, so the
// file order (or the fallback's fixed order) is part of the contract.
type Dictionary struct {
	entries  []Entry
	version  string
	checksum string
}

// file mirrors the on-disk YAML document.
type file struct {
	Version     string    `yaml:"version"`
	Description string    `yaml:"description"`
	Brands      yaml.Node `yaml:"brands"`
}

type fileEntry struct {
	Pattern string  `yaml:"pattern"`
	Regex   string  `yaml:"regex"`
	Weight  float64 `yaml:"weight"`
}

// Load reads a brand dictionary from a YAML file. A missing or undecodable
// file falls back to the built-in default dictionary so the matcher always
// has at least one entry. Entries with patterns that fail to compile are
// skipped with a warning; a single bad entry never aborts the load.
func Load(path string, logger *slog.Logger) (*Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("dictionary file unavailable, using built-in fallback",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return Default(), nil
	}

	var doc file
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		if logger != nil {
			logger.Warn("dictionary file undecodable, using built-in fallback",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return Default(), nil
	}

	entries, err := decodeBrands(&doc.Brands)
	if err != nil {
		if logger != nil {
			logger.Warn("dictionary brands section invalid, using built-in fallback",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return Default(), nil
	}
	if len(entries) == 0 {
		if logger != nil {
			logger.Warn("dictionary has no brands, using built-in fallback", slog.String("path", path))
		}
		return Default(), nil
	}

	return New(entries, logger), nil
}

// decodeBrands walks the brands mapping node directly so the YAML document
// order of brand names is preserved.
func decodeBrands(node *yaml.Node) ([]Entry, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("brands: expected a mapping, got yaml kind %d", node.Kind)
	}
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		var fe fileEntry
		if err := valNode.Decode(&fe); err != nil {
			return nil, fmt.Errorf("brands.%s: %w", keyNode.Value, err)
		}
		pattern := fe.Pattern
		if pattern == "" {
			pattern = fe.Regex
		}
		weight := fe.Weight
		if weight == 0 {
			weight = 1.0
		}
		entries = append(entries, Entry{Name: keyNode.Value, Pattern: pattern, Weight: weight})
	}
	return entries, nil
}

// New builds a dictionary from the given entries, compiling each pattern.
// Entries whose patterns do not compile are dropped with a warning.
func New(entries []Entry, logger *slog.Logger) *Dictionary {
	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		compiled, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping brand entry with invalid pattern",
					slog.String("brand", entry.Name),
					slog.String("pattern", entry.Pattern),
					slog.String("error", err.Error()))
			}
			continue
		}
		entry.compiled = compiled
		kept = append(kept, entry)
	}

	d := &Dictionary{entries: kept}
	d.checksum = checksum(kept)
	d.version = d.checksum[:8]
	return d
}

// Default returns the built-in fallback dictionary. The generic catch-all
// entry carries a low weight so any named brand outranks it.
func Default() *Dictionary {
	return New([]Entry{
		{Name: "coke", Pattern: `\b(coca[\s-]?cola|coke)\b`, Weight: 1.0},
		{Name: "pepsi", Pattern: `\bpepsi\b`, Weight: 1.0},
		{Name: "sprite", Pattern: `\bsprite\b`, Weight: 1.0},
		{Name: "red_bull", Pattern: `\b(red[\s-]?bull|redbull)\b`, Weight: 1.0},
		{Name: "monster", Pattern: `\bmonster\b`, Weight: 0.8},
		{Name: "gatorade", Pattern: `\bgatorade\b`, Weight: 1.0},
		{Name: "powerade", Pattern: `\bpowerade\b`, Weight: 1.0},
		{Name: "mountain_dew", Pattern: `\b(mountain[\s-]?dew|mtn[\s-]?dew)\b`, Weight: 1.0},
		{Name: "generic", Pattern: `.*`, Weight: 0.1},
	}, nil)
}

// Entries returns the dictionary's entries in match order.
func (d *Dictionary) Entries() []Entry {
	return d.entries
}

// Len returns the number of usable entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Version returns the 8-character content version identifier. Two
// dictionaries with identical names, patterns, and weights share a version;
// any change to one of them produces a different version.
func (d *Dictionary) Version() string {
	return d.version
}

// Checksum returns the full hex content checksum the version is derived from.
func (d *Dictionary) Checksum() string {
	return d.checksum
}

// MarshalJSON serializes the dictionary content in its canonical form.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	return canonicalJSON(d.entries)
}

// checksum hashes the canonical sorted-key JSON serialization of the entries.
func checksum(entries []Entry) string {
	canonical, err := canonicalJSON(entries)
	if err != nil {
		// Entries hold only strings and floats; canonical marshaling cannot fail.
		panic(fmt.Sprintf("dictionary checksum: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func canonicalJSON(entries []Entry) ([]byte, error) {
	content := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		content[entry.Name] = map[string]any{
			"pattern": entry.Pattern,
			"weight":  entry.Weight,
		}
	}
	// encoding/json sorts map keys, which keeps the serialization canonical.
	return json.Marshal(content)
}
