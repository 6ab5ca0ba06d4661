package core

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter describes which entries a query returns.
type Filter struct {
	// Limit caps the number of results. Zero means DefaultLimit, NoLimit
	// returns every match.
	Limit int
	Scope Scope
	// Anchor is the absolute directory the query is scoped against.
	Anchor string
	// RequireTags keeps only entries with at least one tag.
	RequireTags bool

	// TagPattern keeps entries with a tag matching a doublestar glob.
	// A pattern without glob syntax matches as a case-insensitive substring.
	TagPattern string
	// Day keeps entries created on the same calendar day, evaluated in
	// Day's location. The zero value disables the filter.
	Day time.Time
	// Search keeps entries whose message or tags contain the keyword,
	// ignoring case.
	Search string
}

// Validate checks the filter without touching storage.
func (f Filter) Validate() error {
	if f.Limit < 0 && f.Limit != NoLimit {
		return &ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if f.Scope != ScopeExact && f.Scope != ScopeRecursive {
		return &ValidationError{Field: "scope", Reason: "unknown scope"}
	}
	if f.Anchor == "" || !isAbs(f.Anchor) {
		return &ValidationError{Field: "anchor", Reason: "must be an absolute path: " + f.Anchor}
	}
	if isGlob(f.TagPattern) && !doublestar.ValidatePattern(f.TagPattern) {
		return &ValidationError{Field: "tag", Reason: "bad pattern: " + f.TagPattern}
	}
	return nil
}

func (f Filter) limit() int {
	if f.Limit == 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Matches reports whether a single entry passes every predicate of the filter.
// Ordering and Limit are not considered.
func (f Filter) Matches(m Matcher, e Entry) bool {
	if !m.Match(e.Directory, f.Anchor, f.Scope) {
		return false
	}
	if (f.RequireTags || f.TagPattern != "") && !e.HasTags() {
		return false
	}
	if f.TagPattern != "" && !slices.ContainsFunc(e.Tags, f.matchTag) {
		return false
	}
	if !f.Day.IsZero() && !sameDay(e.CreatedAt.In(f.Day.Location()), f.Day) {
		return false
	}
	if f.Search != "" && !containsKeyword(e, f.Search) {
		return false
	}
	return true
}

func (f Filter) matchTag(tag string) bool {
	if isGlob(f.TagPattern) {
		ok, _ := doublestar.Match(f.TagPattern, tag)
		return ok
	}
	return strings.Contains(strings.ToLower(tag), strings.ToLower(f.TagPattern))
}

// ParseDay parses a YYYY-MM-DD date in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "use YYYY-MM-DD: " + s}
	}
	return d, nil
}

// Scanner yields stored entries oldest first.
type Scanner interface {
	Scan(ctx context.Context) iter.Seq2[Entry, error]
}

// Query runs a full scan and returns the matching entries, most recent
// first: CreatedAt descending, ties broken by ID descending. An empty result
// is not an error.
func Query(ctx context.Context, s Scanner, m Matcher, f Filter) ([]Entry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	limit := f.limit()
	var matched []Entry
	for e, err := range s.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		if !f.Matches(m, e) {
			continue
		}
		matched = append(matched, e)
		// Keep memory bounded by the limit, not by the store size.
		if limit != NoLimit && len(matched) >= 2*limit+64 {
			slices.SortFunc(matched, Newer)
			matched = matched[:limit]
		}
	}

	slices.SortFunc(matched, Newer)
	if limit != NoLimit && len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []Entry{}
	}
	return matched, nil
}

// Newer orders entries most recent first.
func Newer(a, b Entry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func containsKeyword(e Entry, kw string) bool {
	kw = strings.ToLower(kw)
	if strings.Contains(strings.ToLower(e.Message), kw) {
		return true
	}
	for _, t := range e.Tags {
		if strings.Contains(strings.ToLower(t), kw) {
			return true
		}
	}
	return false
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, `*?[{\`)
}
