package fetch

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// FallbackExtension is used when neither the URL nor the content type names
// a known image format.
const FallbackExtension = "jpg"

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg":     "jpg",
	"image/jpg":      "jpg",
	"image/pjpeg":    "jpg",
	"image/png":      "png",
	"image/gif":      "gif",
	"image/webp":     "webp",
	"image/bmp":      "bmp",
	"image/x-ms-bmp": "bmp",
}

// Extension returns the file extension (without dot) for an image fetched
// from rawURL: a known image suffix of the URL path, else one derived from
// contentType, else FallbackExtension.
func Extension(rawURL, contentType string) string {
	if ext := extensionFromURL(rawURL); ext != "" {
		return ext
	}
	if ext := extensionFromContentType(contentType); ext != "" {
		return ext
	}
	return FallbackExtension
}

func extensionFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if idx := strings.IndexAny(p, "?#"); idx != -1 {
		p = p[:idx]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if imageExtensions[ext] {
		return ext
	}
	return ""
}

func extensionFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return contentTypeExtensions[strings.ToLower(mediaType)]
}
