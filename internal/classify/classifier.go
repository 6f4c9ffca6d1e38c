package classify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kura/internal/catalog"
)

// Result is the outcome of Classify. Subcategory is empty unless Sensitive.
type Result struct {
	Kind        Kind
	Sensitive   bool
	Subcategory string
}

// Classifier applies a Policy. It is safe for concurrent use.
type Classifier struct {
	policy Policy
	lower  cases.Caser
}

// New returns a classifier for policy. A zero Fallback becomes "Other".
func New(policy Policy) *Classifier {
	if strings.TrimSpace(policy.Fallback) == "" {
		policy.Fallback = defaultFallback
	}
	return &Classifier{policy: policy, lower: cases.Lower(language.Und)}
}

// Policy returns the tables in use.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify maps an entry to its branch, sensitivity and subcategory.
func (c *Classifier) Classify(e catalog.Entry) Result {
	res := Result{Kind: c.Kind(e)}
	haystack := c.haystack(e)
	if !containsAny(haystack, c.policy.SensitiveKeywords) {
		return res
	}
	res.Sensitive = true
	res.Subcategory = c.policy.Fallback
	for _, cat := range c.policy.Subcategories {
		if containsAny(haystack, cat.Keywords) {
			res.Subcategory = cat.Name
			break
		}
	}
	return res
}

// Kind decides the media branch from the kind code, falling back to the
// literals "manga" then "anime" in the title and then in the genres.
func (c *Classifier) Kind(e catalog.Entry) Kind {
	if e.KindCode != nil {
		switch {
		case inRanges(c.policy.VideoKinds, *e.KindCode):
			return KindAnime
		case inRanges(c.policy.PrintKinds, *e.KindCode):
			return KindManga
		}
	}
	for _, field := range []string{e.Title, e.Genres} {
		text := c.fold(field)
		switch {
		case strings.Contains(text, "manga"):
			return KindManga
		case strings.Contains(text, "anime"):
			return KindAnime
		}
	}
	return KindAnime
}

// Rate returns the most severe rating whose rule matches first in order.
func (c *Classifier) Rate(e catalog.Entry) Rating {
	haystack := c.haystack(e)
	for _, rule := range c.policy.Ratings {
		if containsAny(haystack, rule.Keywords) {
			return rule.Rating
		}
	}
	return RatingPG
}

// haystack joins title and genres with a newline so no keyword can match
// across the boundary.
func (c *Classifier) haystack(e catalog.Entry) string {
	return c.fold(e.Title) + "\n" + c.fold(e.Genres)
}

func (c *Classifier) fold(s string) string {
	if s == "" {
		return ""
	}
	// Caser carries state between calls, so each call gets its own copy.
	caser := c.lower
	return caser.String(s)
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
