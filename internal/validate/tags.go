// Package validate implements tag normalization and entry-data validation
// against an entry type's schema.
package validate

import (
	"strings"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

const (
	// MaxTagBytes is the longest a single normalized tag may be.
	MaxTagBytes = 128
	// MaxTagsPerEntry is the most tags a single entry may carry.
	MaxTagsPerEntry = 100
	// MaxDataBytes is the largest an entry's data_json payload may be.
	MaxDataBytes = 1024 * 1024
)

// NormalizeTags trims whitespace, lowercases (ASCII), validates the
// character set ([a-z0-9_:-]), enforces per-tag and per-entry length limits,
// and deduplicates while preserving first-seen order.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) > MaxTagsPerEntry {
		return nil, model.ErrorValidation("too many tags (max %d)", MaxTagsPerEntry)
	}

	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			return nil, model.ErrorValidation("empty tag is not allowed")
		}
		if len(trimmed) > MaxTagBytes {
			return nil, model.ErrorValidation("tag too long (max %d bytes): %q", MaxTagBytes, trimmed)
		}
		if !isValidTagCharset(trimmed) {
			return nil, model.ErrorValidation("tag contains invalid characters: %q", trimmed)
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}

	return normalized, nil
}

func isValidTagCharset(tag string) bool {
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == ':':
		default:
			return false
		}
	}
	return true
}
