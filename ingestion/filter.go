package ingestion

import (
	"regexp"

	"github.com/poiesic/versed/core"
)

// DefaultExcludedChapters are the front and back matter titles of the bundled book.
var DefaultExcludedChapters = []string{
	"Praise for Paramahansa Yogananda’s commentary on the Bhagavad Gita…",
	"Acknowledgments",
	"Back Cover",
	"About the Author",
	"Paramahansa Yogananda: A Yogi in Life and Death",
	"Aims and Ideals of Self-Realization Fellowship",
	"Autobiography of a Yogi",
	"Other Books by Paramahansa Yogananda",
	"Additional Resources on the Kriya Yoga Teachings of Paramahansa Yogananda",
	"Terms Associated With Self-Realization Fellowship",
	"Self-Realization Fellowship Lessons",
	"Notes",
}

// CleanRule replaces every match of Pattern with Replacement.
type CleanRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultCleanRules strip newlines, plus signs, part markers and image
// placeholders, in that order.
func DefaultCleanRules() []CleanRule {
	return []CleanRule{
		{Pattern: regexp.MustCompile(`\n`), Replacement: " "},
		{Pattern: regexp.MustCompile(`\+`), Replacement: ""},
		{Pattern: regexp.MustCompile(`\[part[^\[\]]*\]`), Replacement: ""},
		{Pattern: regexp.MustCompile(`\[\.{2}/images\]`), Replacement: ""},
	}
}

// ContentFilter drops excluded or empty sections and cleans the rest.
type ContentFilter struct {
	excluded map[string]struct{}
	rules    []CleanRule
}

// FilterOption configures a ContentFilter.
type FilterOption func(*ContentFilter)

// WithExcludedChapters replaces the default exclusion list.
func WithExcludedChapters(titles ...string) FilterOption {
	return func(f *ContentFilter) {
		f.excluded = make(map[string]struct{}, len(titles))
		for _, t := range titles {
			f.excluded[t] = struct{}{}
		}
	}
}

// WithCleanRules replaces the default cleaning rules.
func WithCleanRules(rules ...CleanRule) FilterOption {
	return func(f *ContentFilter) {
		f.rules = rules
	}
}

// NewContentFilter creates a filter with the book's defaults.
func NewContentFilter(opts ...FilterOption) *ContentFilter {
	f := &ContentFilter{rules: DefaultCleanRules()}
	WithExcludedChapters(DefaultExcludedChapters...)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Excluded reports whether a chapter title is on the exclusion list.
// Sections without a chapter are never excluded.
func (f *ContentFilter) Excluded(chapter string) bool {
	if chapter == "" {
		return false
	}
	_, ok := f.excluded[chapter]
	return ok
}

// Clean applies the cleaning rules to text.
func (f *ContentFilter) Clean(text string) string {
	for _, rule := range f.rules {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	return text
}

// Apply keeps defined sections whose chapter is not excluded, cleaning their
// content. Metadata is carried over unchanged and order is preserved.
func (f *ContentFilter) Apply(sections []core.Section) []core.Section {
	out := make([]core.Section, 0, len(sections))
	for _, s := range sections {
		if !s.Defined || f.Excluded(s.Metadata.Chapter) {
			continue
		}
		s.PageContent = f.Clean(s.PageContent)
		out = append(out, s)
	}
	return out
}
