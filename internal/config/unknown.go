package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each config section to its valid keys.
var knownKeys = map[string]map[string]bool{
	"server": {
		"listen": true, "static_dir": true, "rate_limit": true, "rate_burst": true,
		"shutdown_timeout": true,
	},
	"oauth": {
		"client_id": true, "client_secret": true, "redirect_url": true,
		"credentials_file": true, "revoke_url": true,
	},
	"token":   {"backend": true, "path": true, "refresh_window": true},
	"catalog": {"page_size": true, "cache_ttl": true, "cache_size": true},
	"logging": {"log_level": true, "log_format": true},
	"network": {"connect_timeout": true, "metadata_timeout": true},
}

// knownSections is the sorted list of section names for Levenshtein matching.
// Sorted for deterministic suggestions when two candidates have the same
// edit distance.
var knownSections = sortedKeys(knownKeys)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := buildKeyError(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, suggesting
// the closest known section or key.
func buildKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	fields, ok := knownKeys[section]
	if !ok {
		if suggestion := closestMatch(section, knownSections); suggestion != "" {
			return fmt.Errorf("unknown config section %q; did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config key %q", key.String())
	}

	if len(key) < 2 {
		// A known section assigned a scalar, e.g. `server = 1`.
		return fmt.Errorf("config key %q must be a table", section)
	}

	if suggestion := closestMatch(key[1], sortedKeys(fields)); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]; did you mean %q?", key[1], section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", key[1], section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
