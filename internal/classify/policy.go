package classify

import (
	"strings"

	"kura/internal/config"
)

// KindRange is an inclusive range of producer kind codes.
type KindRange struct {
	From, To int
}

// Contains reports whether code lies in the range.
func (r KindRange) Contains(code int) bool {
	return code >= r.From && code <= r.To
}

// Category is a named keyword list. A category matches when any keyword is a
// substring of the lower-cased haystack.
type Category struct {
	Name     string
	Keywords []string
}

// RatingRule assigns Rating when any keyword matches.
type RatingRule struct {
	Rating   Rating
	Keywords []string
}

// Policy holds the replaceable keyword and range tables.
type Policy struct {
	VideoKinds        []KindRange
	PrintKinds        []KindRange
	SensitiveKeywords []string
	Subcategories     []Category
	Ratings           []RatingRule
	Fallback          string
}

const defaultFallback = "Other"

// DefaultPolicy returns the built-in tables. Kind codes 1-6 are episodic or
// video releases and 7-12 are print releases.
func DefaultPolicy() Policy {
	return Policy{
		VideoKinds: []KindRange{{From: 1, To: 6}},
		PrintKinds: []KindRange{{From: 7, To: 12}},
		SensitiveKeywords: []string{
			"hentai", "ecchi", "erotic", "eroge", "adult", "nsfw", "18+", "r-18", "r18",
			"porn", "smut", "incest", "mother-son", "milf", "netorare",
		},
		Subcategories: []Category{
			{Name: "mother-son", Keywords: []string{"mother-son", "mother son", "mom-son", "mom son"}},
			{Name: "incest", Keywords: []string{"incest", "sister", "brother", "stepmom", "step-mom"}},
			{Name: "netorare", Keywords: []string{"netorare", "cheating", "cuckold"}},
			{Name: "milf", Keywords: []string{"milf", "mature woman", "housewife"}},
			{Name: "yaoi", Keywords: []string{"yaoi", "boys love"}},
			{Name: "yuri", Keywords: []string{"yuri", "girls love", "shoujo ai"}},
			{Name: "tentacle", Keywords: []string{"tentacle"}},
			{Name: "monster", Keywords: []string{"monster", "demon", "beast"}},
			{Name: "school", Keywords: []string{"school", "student", "teacher", "classroom"}},
			{Name: "fantasy", Keywords: []string{"fantasy", "elf", "isekai"}},
			{Name: "ecchi", Keywords: []string{"ecchi", "fanservice", "harem"}},
		},
		Ratings: []RatingRule{
			{Rating: RatingXXX, Keywords: []string{"hentai", "porn", "r-18", "r18", "18+"}},
			{Rating: RatingX, Keywords: []string{"erotic", "eroge", "adult", "nsfw", "smut", "yaoi", "yuri"}},
			{Rating: RatingR, Keywords: []string{"ecchi", "mature", "gore", "horror", "seinen"}},
			{Rating: RatingPG13, Keywords: []string{"violence", "action", "thriller", "teen", "shounen", "psychological"}},
		},
		Fallback: defaultFallback,
	}
}

// PolicyFromConfig overlays the configured tables on DefaultPolicy. A table
// left empty in the config keeps its default.
func PolicyFromConfig(cfg config.Classify) Policy {
	p := DefaultPolicy()
	if len(cfg.VideoKinds) > 0 {
		p.VideoKinds = convertRanges(cfg.VideoKinds)
	}
	if len(cfg.PrintKinds) > 0 {
		p.PrintKinds = convertRanges(cfg.PrintKinds)
	}
	if len(cfg.SensitiveKeywords) > 0 {
		p.SensitiveKeywords = append([]string(nil), cfg.SensitiveKeywords...)
	}
	if len(cfg.Subcategories) > 0 {
		p.Subcategories = make([]Category, 0, len(cfg.Subcategories))
		for _, c := range cfg.Subcategories {
			p.Subcategories = append(p.Subcategories, Category{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)})
		}
	}
	if len(cfg.Ratings) > 0 {
		p.Ratings = make([]RatingRule, 0, len(cfg.Ratings))
		for _, r := range cfg.Ratings {
			rating, ok := ParseRating(r.Name)
			if !ok {
				continue
			}
			p.Ratings = append(p.Ratings, RatingRule{Rating: rating, Keywords: append([]string(nil), r.Keywords...)})
		}
	}
	if fb := strings.TrimSpace(cfg.Fallback); fb != "" {
		p.Fallback = fb
	}
	return p
}

func convertRanges(in []config.KindRange) []KindRange {
	out := make([]KindRange, 0, len(in))
	for _, r := range in {
		out = append(out, KindRange{From: r.From, To: r.To})
	}
	return out
}

func inRanges(ranges []KindRange, code int) bool {
	for _, r := range ranges {
		if r.Contains(code) {
			return true
		}
	}
	return false
}
