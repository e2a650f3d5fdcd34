package api

import "chronicle/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// KindInfo describes one archived entity kind.
type KindInfo struct {
	Name      string `json:"name" yaml:"name"`
	Table     string `json:"table" yaml:"table"`
	KeyColumn string `json:"key_column,omitempty" yaml:"key_column,omitempty"`
	KeyType   string `json:"key_type,omitempty" yaml:"key_type,omitempty"`
	Equality  string `json:"equality" yaml:"equality"`
	Binary    bool   `json:"binary,omitempty" yaml:"binary,omitempty"`
	Rows      int64  `json:"rows" yaml:"rows"`
}

// KindsResponse lists every kind with its row count.
type KindsResponse struct {
	Kinds []KindInfo `json:"kinds" yaml:"kinds"`
}

// RowsResponse carries ledger rows, newest first.
type RowsResponse struct {
	Kind string       `json:"kind" yaml:"kind"`
	Key  string       `json:"key,omitempty" yaml:"key,omitempty"`
	Rows []models.Row `json:"rows" yaml:"rows"`
}

// BlobMetaResponse describes a stored blob.
type BlobMetaResponse struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// RemoveBlobResponse confirms an admin blob removal.
type RemoveBlobResponse struct {
	ID      string `json:"id" yaml:"id"`
	Removed bool   `json:"removed" yaml:"removed"`
}

// NewKindInfo builds the API view of a kind.
func NewKindInfo(kind models.Kind, rows int64) KindInfo {
	return KindInfo{
		Name:      kind.Name,
		Table:     kind.Table,
		KeyColumn: kind.KeyColumn,
		KeyType:   string(kind.KeyType),
		Equality:  string(kind.Equality),
		Binary:    kind.Binary,
		Rows:      rows,
	}
}
