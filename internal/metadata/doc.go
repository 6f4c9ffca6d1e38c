// Package metadata embeds catalog records into image files and reads them
// back.
//
// Each embed writes human-legible tags (description, software, kind label,
// genres) and one full-fidelity JSON record carrying every entry field that
// Extract needs to rebuild the entry. JPEG files carry the tags in EXIF,
// PNG files in iTXt chunks. Other formats report ErrUnsupportedFormat.
package metadata
