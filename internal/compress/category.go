package compress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory indicates a category string that does not map to a
// known memory category.
var ErrUnknownCategory = errors.New("compress: unknown category")

// Category identifies a memory bucket. The four hierarchy tiers hold
// distilled knowledge; Conversation is a separate namespace for raw
// exchange logs and never participates in tier storage.
type Category string

const (
	Core         Category = "core"
	Working      Category = "working"
	Reference    Category = "reference"
	Historical   Category = "historical"
	Conversation Category = "conversation"
)

// HierarchyCategories lists the four persistent tiers in preference order.
var HierarchyCategories = []Category{Core, Working, Reference, Historical}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Core:
		return Core, nil
	case Working:
		return Working, nil
	case Reference:
		return Reference, nil
	case Historical:
		return Historical, nil
	case Conversation:
		return Conversation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// IsHierarchy reports whether the category is one of the four tiers
// (everything except Conversation).
func (c Category) IsHierarchy() bool {
	switch c {
	case Core, Working, Reference, Historical:
		return true
	default:
		return false
	}
}

// Valid reports whether the category is any known bucket.
func (c Category) Valid() bool {
	return c.IsHierarchy() || c == Conversation
}

func (c Category) String() string { return string(c) }

// coreMarkers are phrases that suggest durable, rule-like knowledge.
var coreMarkers = []string{
	"always", "never", "must", "rule", "important", "remember",
	"prefer", "policy",
}

// referenceMarkers are structural hints of documentation-like content.
var referenceMarkers = []string{
	"```", "http://", "https://", "| ", "- [", "#include", "func ", "example:",
}

// historicalMarkers suggest archived or completed material.
var historicalMarkers = []string{
	"archived", "deprecated", "completed", "resolved", "old version",
}

// DetectCategory picks a default tier for text whose caller did not
// specify one. The heuristics are deliberately cheap: marker phrases,
// keyword density, and raw length. The same input always yields the
// same category.
func DetectCategory(text string) Category {
	lower := strings.ToLower(text)

	if countMarkers(lower, historicalMarkers) >= 2 || len(text) > 8000 {
		return Historical
	}
	if countMarkers(lower, coreMarkers) >= 2 && len(text) < 600 {
		return Core
	}
	if countMarkers(lower, referenceMarkers) >= 1 || len(text) > 2000 {
		return Reference
	}
	return Working
}

func countMarkers(lower string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}
