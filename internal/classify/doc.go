// Package classify maps catalog entries to a media kind, a sensitivity flag,
// a sensitive subcategory and a content rating.
//
// All decisions are keyword or range lookups against a Policy. Every list in
// a Policy is ordered and the first match wins, so the tables read top to
// bottom as tie-break rules. Classification never fails: absent fields are
// empty text and ambiguous entries resolve to documented defaults (Anime,
// the fallback subcategory, PG).
package classify
