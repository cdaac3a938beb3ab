// Package formats classifies format tokens into coarse categories and
// decides whether a conversion between two formats is structurally
// possible, independent of which converters are registered.
package formats

import (
	"slices"
	"strings"
)

// Category is a coarse media class.
type Category string

const (
	Video   Category = "video"
	Audio   Category = "audio"
	Image   Category = "image"
	Tabular Category = "tabular"
)

var table = map[Category][]string{
	Video:   {"mp4", "avi", "mov", "mkv", "webm", "flv", "wmv", "mpg", "mpeg", "m4v"},
	Audio:   {"mp3", "wav", "aac", "flac", "ogg", "wma", "m4a", "opus", "alac"},
	Image:   {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp"},
	Tabular: {"csv", "tsv", "xlsx", "xls", "json"},
}

// categoryOrder fixes iteration order over table.
var categoryOrder = []Category{Video, Audio, Image, Tabular}

var index = buildIndex()

func buildIndex() map[string][]Category {
	idx := make(map[string][]Category)
	for _, c := range categoryOrder {
		for _, f := range table[c] {
			idx[f] = append(idx[f], c)
		}
	}
	return idx
}

// Normalize lower-cases token and strips surrounding spaces and a leading dot,
// so ".MP4", "mp4" and " Mp4 " all map to "mp4".
func Normalize(token string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(token)), ".")
}

// FromFilename returns the normalized format token of a file name's extension.
func FromFilename(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	if strings.ContainsAny(name[i:], `/\`) {
		return ""
	}
	return Normalize(name[i:])
}

// Categories returns the categories a format belongs to, or nil.
func Categories(token string) []Category {
	return slices.Clone(index[Normalize(token)])
}

// Is reports whether token belongs to category c.
func Is(token string, c Category) bool {
	return slices.Contains(index[Normalize(token)], c)
}

// IsRecognized reports whether token appears in any category table.
func IsRecognized(token string) bool {
	_, ok := index[Normalize(token)]
	return ok
}

// Known returns every recognized token, sorted.
func Known() []string {
	out := make([]string, 0, len(index))
	for f := range index {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// InCategory returns the tokens of c in table order.
func InCategory(c Category) []string {
	return slices.Clone(table[c])
}

// IsStructurallyConvertible applies the category rules:
// both formats must be recognized, and audio-only input can never
// produce a video-capable container.
func IsStructurallyConvertible(input, output string) bool {
	in, out := Normalize(input), Normalize(output)
	if !IsRecognized(in) || !IsRecognized(out) {
		return false
	}
	if isAudioOnly(in) && Is(out, Video) {
		return false
	}
	return true
}

func isAudioOnly(token string) bool {
	cats := index[token]
	return len(cats) > 0 && !slices.Contains(cats, Video) && slices.Contains(cats, Audio)
}
