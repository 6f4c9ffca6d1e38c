package classify

// Kind is the top-level media branch.
type Kind int

const (
	KindAnime Kind = iota
	KindManga
)

func (k Kind) String() string {
	if k == KindManga {
		return "Manga"
	}
	return "Anime"
}

// Kinds lists every branch in directory order.
func Kinds() []Kind {
	return []Kind{KindAnime, KindManga}
}

var videoLabels = map[int]string{
	1: "TV Anime",
	2: "OVA",
	3: "Movie",
	4: "Special",
	5: "ONA",
	6: "Music",
}

// KindLabel is the human label embedded into image metadata. Every code in
// the print range is labelled "Manga".
func KindLabel(kindCode *int) string {
	if kindCode == nil {
		return "Unknown"
	}
	if label, ok := videoLabels[*kindCode]; ok {
		return label
	}
	if *kindCode >= 7 && *kindCode <= 12 {
		return "Manga"
	}
	return "Unknown"
}
