package catalog_test

import (
	"errors"
	"testing"

	"kura/internal/catalog"
)

func TestParseJSONArray(t *testing.T) {
	data := []byte(`[
		{"id": 1, "title": " Sample!! ", "imageUrl": "http://host/img.jpg", "kindCode": 1, "genres": "Comedy", "tags": ["a", "b"]},
		{"id": "2", "title": "Second", "imageUrl": "", "kindCode": "7", "genres": ["Drama", " Romance "]},
		{"title": "No id"}
	]`)
	entries, err := catalog.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.ID == nil || *first.ID != 1 || first.Title != "Sample!!" || first.KindCode == nil || *first.KindCode != 1 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if len(first.Tags) != 2 {
		t.Fatalf("expected tags to survive, got %v", first.Tags)
	}
	second := entries[1]
	if second.ID == nil || *second.ID != 2 || second.KindCode == nil || *second.KindCode != 7 {
		t.Fatalf("expected string numbers to parse, got %+v", second)
	}
	if second.Genres != "Drama, Romance" {
		t.Fatalf("expected genre list joined, got %q", second.Genres)
	}
	if entries[2].ID != nil || entries[2].KindCode != nil {
		t.Fatalf("expected absent fields to stay nil, got %+v", entries[2])
	}
}

func TestParseJSONObjectAndXML(t *testing.T) {
	obj := []byte(`{"entries": [{"id": 5, "title": "Obj", "imageUrl": "https://x/y.png"}]}`)
	entries, err := catalog.Parse(obj)
	if err != nil || len(entries) != 1 || entries[0].Title != "Obj" {
		t.Fatalf("object form: entries=%+v err=%v", entries, err)
	}

	xmlDoc := []byte(`<?xml version="1.0"?>
<catalog>
  <entry><id>9</id><title>From XML</title><imageUrl>http://h/a.webp</imageUrl><kindCode>3</kindCode><genres>Action; Drama</genres><tags><tag>x</tag></tags></entry>
</catalog>`)
	entries, err = catalog.Parse(xmlDoc)
	if err != nil {
		t.Fatalf("xml form: %v", err)
	}
	if len(entries) != 1 || entries[0].ID == nil || *entries[0].ID != 9 || *entries[0].KindCode != 3 {
		t.Fatalf("unexpected xml entries %+v", entries)
	}
	if entries[0].Genres != "Action; Drama" || len(entries[0].Tags) != 1 {
		t.Fatalf("unexpected xml entry %+v", entries[0])
	}
}

func TestParseFailsWithoutPartialResult(t *testing.T) {
	cases := map[string][]byte{
		"empty":      []byte("  "),
		"garbage":    []byte("hello"),
		"bad json":   []byte(`[{"id": 1}, {"id": }]`),
		"bad id":     []byte(`[{"id": 1}, {"id": "abc"}]`),
		"bad genres": []byte(`[{"genres": 12}]`),
		"broken xml": []byte(`<catalog><entry>`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			entries, err := catalog.Parse(data)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if entries != nil {
				t.Fatalf("expected no entries on failure, got %d", len(entries))
			}
		})
	}
	if _, err := catalog.Parse(nil); !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestDownloadableAndKey(t *testing.T) {
	entries := []catalog.Entry{
		{ID: catalog.Int64(1), ImageURL: "http://a"},
		{ID: catalog.Int64(2), ImageURL: "  "},
		{ImageURL: "http://c"},
	}
	keep, dropped := catalog.Downloadable(entries)
	if len(keep) != 2 || dropped != 1 {
		t.Fatalf("unexpected filter result keep=%d dropped=%d", len(keep), dropped)
	}
	if key, ok := keep[0].Key(); !ok || key != "id:1" {
		t.Fatalf("unexpected key %q %v", key, ok)
	}
	if _, ok := keep[1].Key(); ok {
		t.Fatal("entry without id must not have a key")
	}
	if keep[1].IDString() != "0" {
		t.Fatalf("expected 0 for absent id, got %q", keep[1].IDString())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := catalog.Entry{ID: catalog.Int64(3), KindCode: catalog.Int(1), Tags: []string{"a"}}
	cp := orig.Clone()
	*cp.ID = 99
	*cp.KindCode = 5
	cp.Tags[0] = "z"
	if *orig.ID != 3 || *orig.KindCode != 1 || orig.Tags[0] != "a" {
		t.Fatalf("clone shares memory with original: %+v", orig)
	}
	if !orig.Equal(orig.Clone()) {
		t.Fatal("expected clone to equal original")
	}
}
