package metadata

import (
	"bytes"
	"fmt"
	"os"

	exifwrite "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"

	"kura/internal/fileutil"
)

// userCommentHeaderLen is the size of the character code prefix of an EXIF
// UserComment value.
const userCommentHeaderLen = 8

func embedJPEG(path string, tags tagSet) (err error) {
	// The EXIF builder reports some malformed inputs by panicking.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write exif: %v", r)
		}
	}()

	parsed, err := jis.NewJpegMediaParser().ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := parsed.(*jis.SegmentList)
	if !ok {
		return fmt.Errorf("parse jpeg: unexpected media context %T", parsed)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// No usable EXIF block yet; start a fresh one.
		rootIb, err = newRootBuilder()
		if err != nil {
			return err
		}
	}

	ifd0, err := exifwrite.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return fmt.Errorf("open IFD0: %w", err)
	}
	for _, field := range []struct{ name, value string }{
		{"ImageDescription", tags.description},
		{"Software", tags.software},
		{"Model", tags.kind},
		{"Artist", tags.genres},
	} {
		if field.value == "" {
			continue
		}
		if err := ifd0.SetStandardWithName(field.name, field.value); err != nil {
			return fmt.Errorf("set %s: %w", field.name, err)
		}
	}

	exifIfd, err := exifwrite.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return fmt.Errorf("open exif ifd: %w", err)
	}
	comment := exifundefined.Tag9286UserComment{
		EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
		EncodingBytes: tags.record,
	}
	if err := exifIfd.SetStandardWithName("UserComment", comment); err != nil {
		return fmt.Errorf("set UserComment: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("install exif: %w", err)
	}
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return fileutil.ReplaceAtomic(path, buf.Bytes())
}

func newRootBuilder() (*exifwrite.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("exif ifd mapping: %w", err)
	}
	ti := exifwrite.NewTagIndex()
	return exifwrite.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

func readJPEGTags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("read exif: %w", err)
	}

	tags := make(map[string]string, 5)
	for key, field := range map[string]exif.FieldName{
		TagDescription: exif.ImageDescription,
		TagSoftware:    exif.Software,
		TagKind:        exif.Model,
		TagGenres:      exif.Artist,
	} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if value, err := tag.StringVal(); err == nil && value != "" {
			tags[key] = value
		}
	}
	if tag, err := x.Get(exif.UserComment); err == nil && len(tag.Val) > userCommentHeaderLen {
		tags[TagRecord] = string(bytes.TrimRight(tag.Val[userCommentHeaderLen:], "\x00 "))
	}
	return tags, nil
}
