// Package converters defines the converter capability contract and the
// converters built into the binary.
//
// A converter declares the formats it understands, answers whether a given
// input/output pair is feasible for it, and executes a job against files on
// local disk, returning the paths of the artifacts it produced.
package converters

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dmitrijs2005/transmute/internal/common"
	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/formats"
)

// Converter transforms files between formats.
//
// SupportedFormats is the same set for input and output. CanConvert narrows
// it with converter-specific constraints and must be consulted before Convert.
type Converter interface {
	Name() string
	SupportedFormats() []string
	CanConvert(input, output string) bool
	Convert(ctx context.Context, job Job) ([]string, error)
}

// Quality presets understood by the built-in converters.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Job describes a single conversion.
type Job struct {
	InputPath    string
	OutputDir    string
	InputFormat  string
	OutputFormat string
	// Quality is one of the Quality* presets; empty means medium.
	Quality string
}

// Unimplemented denies every conversion. Embed it so that a converter only
// accepts the pairs it explicitly allows.
type Unimplemented struct{}

func (Unimplemented) CanConvert(string, string) bool { return false }

func (Unimplemented) Convert(_ context.Context, job Job) ([]string, error) {
	return nil, &common.UnsupportedConversionError{
		Input:  formats.Normalize(job.InputFormat),
		Output: formats.Normalize(job.OutputFormat),
		Reason: "converter does not implement this pair",
	}
}

// Prepare runs the checks every Convert implementation starts with: the
// pair must be feasible for c, the input must exist, and the output
// directory is created if missing.
func Prepare(c Converter, job Job) error {
	in, out := formats.Normalize(job.InputFormat), formats.Normalize(job.OutputFormat)
	if !c.CanConvert(in, out) {
		return &common.UnsupportedConversionError{
			Input:  in,
			Output: out,
			Reason: c.Name() + " cannot convert this pair",
		}
	}
	if !filex.Exists(job.InputPath) {
		return fmt.Errorf("%w: %s", common.ErrInputNotFound, job.InputPath)
	}
	if _, err := filex.EnsureDir(job.OutputDir); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}
	return nil
}

// OutputPath is <input stem>.<output format> inside the job's output dir.
func OutputPath(job Job) string {
	return filepath.Join(job.OutputDir, filex.Stem(job.InputPath)+"."+formats.Normalize(job.OutputFormat))
}

func normalizedQuality(q string) string {
	switch formats.Normalize(q) {
	case QualityHigh:
		return QualityHigh
	case QualityLow:
		return QualityLow
	default:
		return QualityMedium
	}
}

// supports reports whether both formats are in list.
func supports(list []string, in, out string) bool {
	return slices.Contains(list, formats.Normalize(in)) && slices.Contains(list, formats.Normalize(out))
}

func failure(name string, err error, diagnostic string) error {
	return &common.ConversionError{Converter: name, Err: err, Diagnostic: diagnostic}
}
