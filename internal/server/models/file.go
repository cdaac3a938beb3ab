// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/transmute/internal/formats"
)

// File is the metadata of one stored blob, either uploaded by a client
// or produced by a conversion. Its identity never changes.
type File struct {
	ID string
	// StorageKey locates the bytes in raw storage.
	StorageKey       string
	OriginalFilename string
	// MediaType is the MIME type sniffed from content.
	MediaType string
	// Extension is lower-case with a leading dot, e.g. ".mp4".
	Extension string
	SizeBytes int64
	// SHA256Checksum is the hex digest of the full content.
	SHA256Checksum string
	// Origin is common.OriginUpload or common.OriginConverted.
	Origin    string
	CreatedAt time.Time
}

// Format returns the format token derived from the extension.
func (f *File) Format() string {
	return formats.Normalize(f.Extension)
}
