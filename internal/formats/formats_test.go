package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mp4", "mp4"},
		{".MP4", "mp4"},
		{"  Png ", "png"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestFromFilename(t *testing.T) {
	assert.Equal(t, "jpg", FromFilename("holiday.JPG"))
	assert.Equal(t, "gz", FromFilename("backup.tar.gz"))
	assert.Equal(t, "", FromFilename("README"))
	assert.Equal(t, "", FromFilename("trailing."))
	assert.Equal(t, "", FromFilename("dir.d/file"))
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []Category{Video}, Categories("MKV"))
	assert.Equal(t, []Category{Audio}, Categories("wav"))
	assert.Equal(t, []Category{Image}, Categories(".webp"))
	assert.Equal(t, []Category{Tabular}, Categories("xlsx"))
	assert.Nil(t, Categories("docx"))
}

func TestIsRecognizedAndKnown(t *testing.T) {
	assert.True(t, IsRecognized("FLAC"))
	assert.False(t, IsRecognized("exe"))

	known := Known()
	require.NotEmpty(t, known)
	assert.IsNonDecreasing(t, known)
	assert.Contains(t, known, "mp3")
	assert.Contains(t, known, "csv")
}

func TestIsStructurallyConvertible(t *testing.T) {
	tests := []struct {
		name    string
		in, out string
		want    bool
	}{
		{"audio to video rejected", "wav", "mp4", false},
		{"audio to video rejected case-insensitively", "MP3", ".MKV", false},
		{"video to audio allowed", "mp4", "mp3", true},
		{"video to video allowed", "avi", "mp4", true},
		{"audio to audio allowed", "flac", "mp3", true},
		{"self conversion allowed", "png", "png", true},
		{"image to image allowed", "png", "jpg", true},
		{"unrecognized input", "docx", "pdf", false},
		{"unrecognized output", "png", "svg", false},
		{"empty tokens", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStructurallyConvertible(tt.in, tt.out))
		})
	}
}

func TestAudioNeverReachesVideo(t *testing.T) {
	for _, a := range InCategory(Audio) {
		for _, v := range InCategory(Video) {
			assert.False(t, IsStructurallyConvertible(a, v), "%s -> %s", a, v)
		}
	}
}
