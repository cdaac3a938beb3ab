package converters

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"slices"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/transmute/internal/formats"
)

const imageName = "image"

var jpegQuality = map[string]int{
	QualityHigh:   95,
	QualityMedium: 85,
	QualityLow:    70,
}

var pngCompression = map[string]png.CompressionLevel{
	QualityHigh:   png.BestCompression,
	QualityMedium: png.DefaultCompression,
	QualityLow:    png.BestSpeed,
}

// Image re-encodes raster images. WebP is decoded but never written.
type Image struct {
	Unimplemented
	formats []string
}

func NewImage() *Image {
	return &Image{formats: formats.InCategory(formats.Image)}
}

func (i *Image) Name() string { return imageName }

func (i *Image) SupportedFormats() []string { return slices.Clone(i.formats) }

func (i *Image) CanConvert(input, output string) bool {
	return supports(i.formats, input, output) && formats.Normalize(output) != "webp"
}

func (i *Image) Convert(ctx context.Context, job Job) ([]string, error) {
	if err := Prepare(i, job); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(imageName, err, "")
	}

	src, err := decodeImage(job.InputPath)
	if err != nil {
		return nil, failure(imageName, err, "")
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(imageName, err, "")
	}

	dst := OutputPath(job)
	if err := writeImage(dst, src, formats.Normalize(job.OutputFormat), normalizedQuality(job.Quality)); err != nil {
		_ = os.Remove(dst)
		return nil, failure(imageName, err, "")
	}
	return []string{dst}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func writeImage(path string, img image.Image, output, quality string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := encodeImage(w, img, output, quality); err != nil {
		return fmt.Errorf("encode %s: %w", output, err)
	}
	return w.Flush()
}

func encodeImage(w io.Writer, img image.Image, output, quality string) error {
	switch output {
	case "jpg", "jpeg":
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: jpegQuality[quality]})
	case "png":
		enc := png.Encoder{CompressionLevel: pngCompression[quality]}
		return enc.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff", "tif":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return fmt.Errorf("no encoder for %q", output)
	}
}

// flatten composites img over white, since JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
