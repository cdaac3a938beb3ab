package converters

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/transmute/internal/filex"
	"github.com/dmitrijs2005/transmute/internal/formats"
)

const ffmpegName = "ffmpeg"

// diagnosticLimit caps how much ffmpeg output is attached to errors.
const diagnosticLimit = 4096

// runCommand executes an external tool and returns its combined output.
var runCommand = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

type videoPreset struct {
	crf    int
	preset string
}

var videoPresets = map[string]videoPreset{
	QualityHigh:   {crf: 18, preset: "slow"},
	QualityMedium: {crf: 23, preset: "medium"},
	QualityLow:    {crf: 28, preset: "veryfast"},
}

var audioBitrates = map[string]string{
	QualityHigh:   "320k",
	QualityMedium: "192k",
	QualityLow:    "128k",
}

// FFmpeg converts audio and video by shelling out to ffmpeg.
type FFmpeg struct {
	Unimplemented
	binary  string
	formats []string
}

func NewFFmpeg(binary string) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = ffmpegName
	}
	list := append(formats.InCategory(formats.Video), formats.InCategory(formats.Audio)...)
	return &FFmpeg{binary: binary, formats: list}
}

func (f *FFmpeg) Name() string { return ffmpegName }

func (f *FFmpeg) SupportedFormats() []string { return slices.Clone(f.formats) }

func (f *FFmpeg) CanConvert(input, output string) bool {
	return supports(f.formats, input, output) && formats.IsStructurallyConvertible(input, output)
}

func (f *FFmpeg) Convert(ctx context.Context, job Job) ([]string, error) {
	if err := Prepare(f, job); err != nil {
		return nil, err
	}

	dst := OutputPath(job)
	args := ffmpegArgs(job.InputPath, dst, formats.Normalize(job.OutputFormat), normalizedQuality(job.Quality))

	out, err := runCommand(ctx, f.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, failure(ffmpegName, err, tail(string(out), diagnosticLimit))
	}
	if !filex.Exists(dst) {
		return nil, failure(ffmpegName, errors.New("no output produced"), tail(string(out), diagnosticLimit))
	}
	return []string{dst}, nil
}

func ffmpegArgs(src, dst, output, quality string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
	}

	if formats.Is(output, formats.Audio) {
		args = append(args, "-vn")
		switch output {
		case "mp3":
			args = append(args, "-c:a", "libmp3lame", "-b:a", audioBitrates[quality])
		case "aac", "m4a":
			args = append(args, "-c:a", "aac", "-b:a", audioBitrates[quality])
		case "ogg":
			args = append(args, "-c:a", "libvorbis", "-b:a", audioBitrates[quality])
		case "opus":
			args = append(args, "-c:a", "libopus", "-b:a", audioBitrates[quality])
		case "wma":
			args = append(args, "-c:a", "wmav2", "-b:a", audioBitrates[quality])
		case "alac":
			args = append(args, "-c:a", "alac", "-f", "ipod")
		}
		return append(args, dst)
	}

	p := videoPresets[quality]
	crf := strconv.Itoa(p.crf)
	switch output {
	case "mp4", "mov", "mkv", "m4v":
		args = append(args,
			"-c:v", "libx264", "-crf", crf, "-preset", p.preset,
			"-c:a", "aac", "-b:a", audioBitrates[quality],
		)
		if output == "mp4" || output == "m4v" {
			args = append(args, "-movflags", "+faststart")
		}
	case "webm":
		args = append(args,
			"-c:v", "libvpx-vp9", "-crf", strconv.Itoa(p.crf+10), "-b:v", "0",
			"-c:a", "libopus",
		)
	}
	return append(args, dst)
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
