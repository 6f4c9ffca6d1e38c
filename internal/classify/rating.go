package classify

import "strings"

// Rating is a totally ordered content rating; larger is more severe.
type Rating int

const (
	RatingPG Rating = iota
	RatingPG13
	RatingR
	RatingX
	RatingXXX
)

var ratingNames = [...]string{"PG", "PG13", "R", "X", "XXX"}

func (r Rating) String() string {
	if r < RatingPG || r > RatingXXX {
		return "PG"
	}
	return ratingNames[r]
}

// ParseRating accepts the names produced by String, case-insensitively, plus
// "PG-13".
func ParseRating(name string) (Rating, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "PG-13" {
		name = "PG13"
	}
	for i, n := range ratingNames {
		if n == name {
			return Rating(i), true
		}
	}
	return RatingPG, false
}
