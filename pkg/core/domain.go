// Package core holds the domain of the work log: entries, query filters,
// directory matching and the query engine. It is agnostic to how entries are
// stored; adapters implement Repository.
package core

import (
	"slices"
	"strings"
	"time"
)

// Entry is a single recorded piece of work.
// Entries are immutable once stored.
type Entry struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Directory string    `json:"directory"`
	Message   string    `json:"message"`
	Tags      []string  `json:"tags,omitempty"`
}

// HasTags reports whether the entry carries at least one tag.
func (e Entry) HasTags() bool {
	return len(e.Tags) > 0
}

// Scope selects how an entry directory is compared against the anchor directory.
type Scope int

const (
	// ScopeExact matches entries written in the anchor directory only.
	ScopeExact Scope = iota
	// ScopeRecursive matches the anchor directory and all of its descendants.
	ScopeRecursive
)

func (s Scope) String() string {
	switch s {
	case ScopeExact:
		return "exact"
	case ScopeRecursive:
		return "recursive"
	default:
		return "unknown"
	}
}

// NoLimit disables result truncation in a Filter.
const NoLimit = -1

// DefaultLimit is used when a Filter leaves Limit at zero.
const DefaultLimit = 1

// WriteRequest carries a new entry as assembled by the caller.
type WriteRequest struct {
	Directory string
	Message   string
	Tags      []string
}

// Validate checks the request without touching storage.
func (r WriteRequest) Validate() error {
	if r.Directory == "" {
		return &ValidationError{Field: "directory", Reason: "must not be empty"}
	}
	if !isAbs(r.Directory) {
		return &ValidationError{Field: "directory", Reason: "must be an absolute path: " + r.Directory}
	}
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	return nil
}

// Normalize returns a copy with a cleaned directory and a deduplicated tag set.
func (r WriteRequest) Normalize() WriteRequest {
	return WriteRequest{
		Directory: NormalizeDir(r.Directory),
		Message:   r.Message,
		Tags:      NormalizeTags(r.Tags),
	}
}

// NormalizeTags trims labels, drops empty ones and collapses duplicates.
// The result is sorted so equal sets compare equal; an empty set is nil.
func NormalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SplitTags parses a comma separated tag list such as "feature,auth".
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}
