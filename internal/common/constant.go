// Package common contains shared constants and sentinel errors used across
// Transmute components.
package common

// AppName is reported by the CLI and used as a prefix for scratch directories.
const AppName = "transmute"

// Origin values stored on file records.
const (
	OriginUpload    = "upload"
	OriginConverted = "converted"
)
