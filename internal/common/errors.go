// Package common defines shared constants and sentinel errors used across
// the conversion subsystem. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Conversion errors.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrInputNotFound         = errors.New("input not found")
	ErrConversionFailure     = errors.New("conversion failed")

	// Ledger invariant violations.
	ErrInvalidRelation = errors.New("invalid relation")

	// Raw file storage errors (write or delete).
	ErrStorageFailure = errors.New("storage failure")
)

// UnsupportedConversionError is returned when no structurally valid or
// registered path exists between two formats. It matches ErrUnsupportedConversion.
type UnsupportedConversionError struct {
	Input  string
	Output string
	Reason string
}

func (e *UnsupportedConversionError) Error() string {
	parts := []string{"unsupported conversion"}
	if e.Input != "" || e.Output != "" {
		parts = append(parts, fmt.Sprintf("%q -> %q", e.Input, e.Output))
	}
	if e.Reason != "" {
		parts = append(parts, "("+e.Reason+")")
	}
	return strings.Join(parts, " ")
}

func (e *UnsupportedConversionError) Is(target error) bool {
	return target == ErrUnsupportedConversion
}

// ConversionError is returned when an external tool or library reports a
// failure. Diagnostic carries the tool's own message (stderr for processes).
type ConversionError struct {
	Converter  string
	Diagnostic string
	Err        error
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	b.WriteString("conversion failed")
	if e.Converter != "" {
		fmt.Fprintf(&b, " in %s", e.Converter)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if d := strings.TrimSpace(e.Diagnostic); d != "" {
		fmt.Fprintf(&b, ": %s", d)
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailure
}

// IsUnsupportedConversion reports whether err is (or wraps) an unsupported conversion.
func IsUnsupportedConversion(err error) bool {
	return errors.Is(err, ErrUnsupportedConversion)
}
