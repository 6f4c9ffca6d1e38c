// Package organizer files catalog entries into the on-disk library taxonomy.
//
// Folders are resolved from the classifier result: sensitive entries land in
// <root>/<Kind>/SENSITIVE/<subcategory>, everything else in
// <root>/<Kind>/<primary genre>. Sensitive leaves carry a zero-byte
// privacy marker that is written before any image is placed next to it.
// The package also scans the tree for status display, removes empty
// folders and audits sensitive leaves for missing markers.
package organizer
