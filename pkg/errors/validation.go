package errors

import (
	"math"
	"strings"
	"unicode"
)

// maxNodeIDLength bounds node identifiers accepted from graph files and the API.
const maxNodeIDLength = 256

// ValidateNodeID validates a node identifier from an input graph.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidGraph, "node id cannot be empty")
	}

	if len(id) > maxNodeIDLength {
		return New(ErrCodeInvalidGraph, "node id too long (max %d characters)", maxNodeIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGraph, "node id %q contains invalid control characters", id)
		}
	}

	return nil
}

// ValidateWeight validates a node mass or edge weight.
// Weights must be finite and strictly positive.
func ValidateWeight(kind string, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return New(ErrCodeInvalidGraph, "%s weight must be finite, got %v", kind, w)
	}
	if w <= 0 {
		return New(ErrCodeInvalidGraph, "%s weight must be positive, got %v", kind, w)
	}
	return nil
}

// ValidateURL validates a cache backend URL.
// Only redis://, rediss:// and mongodb(+srv):// schemes are accepted.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	for _, scheme := range []string{"redis://", "rediss://", "mongodb://", "mongodb+srv://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "unsupported URL scheme in %q", rawURL)
}
