package converters

// Options configures the built-in converters.
type Options struct {
	// FFmpegPath is the ffmpeg executable; empty means "ffmpeg" from PATH.
	FFmpegPath string
}

// Builtins returns the converters compiled into the binary, in the order
// they are registered at startup.
func Builtins(opts Options) []Converter {
	return []Converter{
		NewFFmpeg(opts.FFmpegPath),
		NewImage(),
		NewTabular(),
	}
}
