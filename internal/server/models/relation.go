package models

import "time"

// ConversionRelation pairs an original file with its converted counterpart.
type ConversionRelation struct {
	OriginalFileID  string
	ConvertedFileID string
	CreatedAt       time.Time
}

// Conversion is an original file together with its converted file.
type Conversion struct {
	Original  *File
	Converted *File
}
