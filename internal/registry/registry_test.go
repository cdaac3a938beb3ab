package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/transmute/internal/converters"
)

type fakeConverter struct {
	converters.Unimplemented
	name    string
	formats []string
	allow   func(in, out string) bool
}

func (f *fakeConverter) Name() string               { return f.name }
func (f *fakeConverter) SupportedFormats() []string { return f.formats }

func (f *fakeConverter) CanConvert(in, out string) bool {
	if f.allow != nil {
		return f.allow(in, out)
	}
	return true
}

func (f *fakeConverter) Convert(context.Context, converters.Job) ([]string, error) {
	return nil, nil
}

func newFake(name string, formats ...string) *fakeConverter {
	return &fakeConverter{name: name, formats: formats}
}

func mustNew(t *testing.T, cs ...converters.Converter) *Registry {
	t.Helper()
	r, err := New(cs...)
	require.NoError(t, err)
	return r
}

func TestResolve_SingleConverter(t *testing.T) {
	img := newFake("ImageConverter", "jpg", "png")
	r := mustNew(t, img)

	c, ok := r.Resolve("jpg", "png")
	require.True(t, ok)
	assert.Same(t, img, c)

	c, ok = r.Resolve("jpg", "mp4")
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestResolve_OverlappingConvertersAreDeterministic(t *testing.T) {
	audio := newFake("AudioConverter", "mp3", "wav")
	video := newFake("VideoConverter", "mp4", "mp3", "wav")

	for _, order := range [][]converters.Converter{{audio, video}, {video, audio}} {
		r := mustNew(t, order...)
		for i := 0; i < 50; i++ {
			c, ok := r.Resolve("mp3", "wav")
			require.True(t, ok)
			assert.Equal(t, "AudioConverter", c.Name())
		}
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	r := mustNew(t, newFake("img", "JPG", ".png"))

	_, ok := r.Resolve("Jpg", "PNG")
	assert.True(t, ok)
	assert.Len(t, r.ConvertersForFormat(".JPG"), 1)
}

func TestResolve_UnregisteredFormatIsAbsent(t *testing.T) {
	r := mustNew(t, newFake("img", "jpg", "png"))

	_, ok := r.Resolve("gif", "png")
	assert.False(t, ok)
	_, ok = r.Resolve("docx", "pdf")
	assert.False(t, ok)
}

func TestResolve_AudioToVideoRejectedStructurally(t *testing.T) {
	r := mustNew(t, newFake("anything", "wav", "mp4"))

	_, ok := r.Resolve("wav", "mp4")
	assert.False(t, ok)

	empty := mustNew(t)
	_, ok = empty.Resolve("wav", "mp4")
	assert.False(t, ok)
}

func TestResolve_SelfConversionNeverPanics(t *testing.T) {
	r := mustNew(t, converters.Builtins(converters.Options{})...)

	for _, d := range r.List() {
		for _, f := range d.Formats {
			assert.NotPanics(t, func() { r.Resolve(f, f) }, "%s/%s", d.Name, f)
		}
	}
	_, ok := r.Resolve("png", "png")
	assert.True(t, ok)
	_, ok = r.Resolve("webp", "webp")
	assert.False(t, ok, "image converter never writes webp")
}

func TestResolve_HonoursCanConvert(t *testing.T) {
	picky := &fakeConverter{name: "a-picky", formats: []string{"png", "jpg"}, allow: func(in, out string) bool { return in == "png" }}
	general := newFake("b-general", "png", "jpg")
	r := mustNew(t, picky, general)

	c, ok := r.Resolve("png", "jpg")
	require.True(t, ok)
	assert.Equal(t, "a-picky", c.Name())

	c, ok = r.Resolve("jpg", "png")
	require.True(t, ok)
	assert.Equal(t, "b-general", c.Name())
}

func TestRegister_Validation(t *testing.T) {
	r := mustNew(t)
	assert.ErrorIs(t, r.Register(nil), ErrNilConverter)
	assert.ErrorIs(t, r.Register(newFake("  ", "png")), ErrNoName)
	assert.ErrorIs(t, r.Register(newFake("empty")), ErrNoFormats)

	_, err := New(newFake("ok", "png"), newFake(""))
	assert.ErrorIs(t, err, ErrNoName)
}

func TestRegister_ReplacementDropsStaleFormats(t *testing.T) {
	r := mustNew(t, newFake("conv", "png", "jpg"))
	require.NoError(t, r.Register(newFake("conv", "png", "gif")))

	assert.Empty(t, r.ConvertersForFormat("jpg"))
	got := r.ConvertersForFormat("png")
	require.Len(t, got, 1, "duplicate format entries are collapsed")
	assert.Equal(t, []string{"gif", "png"}, r.List()[0].Formats)

	c, ok := r.ConverterByName("conv")
	require.True(t, ok)
	assert.Contains(t, c.SupportedFormats(), "gif")
}

func TestConvertersForFormat_RegistrationOrder(t *testing.T) {
	r := mustNew(t, newFake("zeta", "csv"), newFake("alpha", "csv"))

	got := r.ConvertersForFormat("csv")
	require.Len(t, got, 2)
	assert.Equal(t, "zeta", got[0].Name())
	assert.Equal(t, "alpha", got[1].Name())
}

func TestCompatibleFormats(t *testing.T) {
	r := mustNew(t, converters.Builtins(converters.Options{})...)

	assert.Equal(t, []string{"bmp", "gif", "jpeg", "jpg", "tif", "tiff"}, r.CompatibleFormats("PNG"))

	wav := r.CompatibleFormats("wav")
	assert.Contains(t, wav, "mp3")
	assert.NotContains(t, wav, "mp4")
	assert.NotContains(t, wav, "wav")

	assert.Empty(t, r.CompatibleFormats("docx"))
}

func TestList(t *testing.T) {
	r := mustNew(t, newFake("b", "wav", "mp3"), newFake("a", "png"))
	assert.Equal(t, []Descriptor{
		{Name: "a", Formats: []string{"png"}},
		{Name: "b", Formats: []string{"mp3", "wav"}},
	}, r.List())
}

func TestConcurrentReads(t *testing.T) {
	r := mustNew(t, converters.Builtins(converters.Options{})...)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.Resolve("mp4", "mp3")
				_ = r.CompatibleFormats("csv")
			}
		}()
	}
	wg.Wait()
}
