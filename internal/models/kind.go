package models

import (
	"fmt"
	"sort"
	"strings"
)

// Equality selects how a fresh observation is compared to the latest row.
type Equality string

const (
	// ByteEquality compares candidate bytes against the blob referenced by the latest row.
	ByteEquality Equality = "byte"
	// CanonicalStringEquality compares the serialized payload verbatim.
	CanonicalStringEquality Equality = "canonical_string"
	// PresenceOnly records the first observation of a key and ignores the rest.
	PresenceOnly Equality = "presence"
	// AttributeEquality compares a fixed set of attribute columns.
	AttributeEquality Equality = "attributes"
)

// KeyType is the column type of a kind's natural key.
type KeyType string

const (
	KeyNone    KeyType = ""
	KeyInteger KeyType = "integer"
	KeyText    KeyType = "text"
)

// Kind describes one entity stream and how it is laid out in the ledger.
type Kind struct {
	Name          string
	Table         string
	KeyColumn     string
	KeyType       KeyType
	PayloadColumn string
	// Binary payloads live in the blob store; PayloadColumn then holds the blob id.
	Binary   bool
	Attrs    []string
	Equality Equality
	// CompareAttrs lists the attributes AttributeEquality compares.
	CompareAttrs []string
}

// Singleton reports whether the kind has no natural key.
func (k Kind) Singleton() bool {
	return k.KeyType == KeyNone
}

// HasAttr reports whether name is one of the kind's attribute columns.
func (k Kind) HasAttr(name string) bool {
	for _, attr := range k.Attrs {
		if attr == name {
			return true
		}
	}
	return false
}

var kinds = []Kind{
	{
		Name:          "ddg_doc",
		Table:         "ddg_docs",
		KeyColumn:     "url",
		KeyType:       KeyText,
		PayloadColumn: "file",
		Binary:        true,
		Attrs:         []string{"name"},
		Equality:      ByteEquality,
	},
	{
		Name:          "document",
		Table:         "website_docs",
		KeyColumn:     "url",
		KeyType:       KeyText,
		PayloadColumn: "file",
		Binary:        true,
		Equality:      ByteEquality,
	},
	{
		Name:          "news",
		Table:         "website_news",
		KeyColumn:     "news_id",
		KeyType:       KeyInteger,
		PayloadColumn: "json",
		Attrs:         []string{"url"},
		Equality:      CanonicalStringEquality,
	},
	{
		Name:          "vacancy",
		Table:         "website_vacancies",
		KeyColumn:     "vacancy_id",
		KeyType:       KeyInteger,
		PayloadColumn: "vacancy",
		Equality:      PresenceOnly,
	},
	{
		Name:          "text",
		Table:         "website_texts",
		KeyColumn:     "url",
		KeyType:       KeyText,
		PayloadColumn: "json",
		Equality:      CanonicalStringEquality,
	},
	{
		Name:      "photo",
		Table:     "website_gallery",
		KeyColumn: "photo_id",
		KeyType:   KeyInteger,
		Attrs:     []string{"url", "album_id", "album_name"},
		Equality:  PresenceOnly,
	},
	{
		Name:          "hh_dump",
		Table:         "hhru",
		PayloadColumn: "json",
		Equality:      CanonicalStringEquality,
	},
	{
		Name:          "crtsh_dump",
		Table:         "crtsh",
		PayloadColumn: "json",
		Equality:      CanonicalStringEquality,
	},
	{
		Name:          "web_capture",
		Table:         "web_captures",
		PayloadColumn: "json",
		Equality:      CanonicalStringEquality,
	},
	{
		Name:         "book",
		Table:        "library_books",
		KeyColumn:    "link",
		KeyType:      KeyText,
		Attrs:        []string{"title", "identifier"},
		Equality:     AttributeEquality,
		CompareAttrs: []string{"title", "identifier"},
	},
}

// Kinds returns every registered entity kind in registration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// KindNames returns the sorted kind names.
func KindNames() []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// LookupKind resolves a kind by name.
func LookupKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}
