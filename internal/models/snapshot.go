package models

// Row is one immutable historical record of an entity.
type Row struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`
	// Date is milliseconds since the Unix epoch.
	Date int64 `json:"date"`
	// Payload holds the inline serialized value, or the blob id for binary kinds.
	Payload string            `json:"payload,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// NewRow is the input to a ledger append.
type NewRow struct {
	Key     string
	Date    int64
	Payload string
	Attrs   map[string]string
}

// Item is one normalized record produced by a source.
type Item struct {
	Key string `json:"key,omitempty"`
	// Name is the display name stored with binary payloads.
	Name    string            `json:"name,omitempty"`
	Payload []byte            `json:"-"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// BlobMeta is the metadata sidecar stored with every blob.
type BlobMeta struct {
	Name string `json:"name"`
}
