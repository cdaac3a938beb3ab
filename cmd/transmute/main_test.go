package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/transmute/internal/flagx"
	"github.com/dmitrijs2005/transmute/internal/server"
	"github.com/dmitrijs2005/transmute/internal/server/config"
	"github.com/dmitrijs2005/transmute/internal/server/models"
)

type cliTestEnv struct {
	dataDir string
	baseDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv(flagx.ConfigEnv, "")
	base := t.TempDir()
	return &cliTestEnv{dataDir: filepath.Join(base, "data"), baseDir: base}
}

// run executes a command line against the env's data directory.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-o", e.dataDir}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("transmute %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (e *cliTestEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// fileNamed looks a record up through a separate App on the same data dir.
func (e *cliTestEnv) fileNamed(t *testing.T, name string) *models.File {
	t.Helper()
	cfg, err := config.LoadConfig([]string{"-o", e.dataDir})
	require.NoError(t, err)
	app, err := server.NewApp(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer app.Close()

	files, err := app.Files.List(context.Background())
	require.NoError(t, err)
	for _, f := range files {
		if f.OriginalFilename == name {
			return f
		}
	}
	t.Fatalf("no stored file named %s", name)
	return nil
}

func TestCLI_UploadConvertDownloadDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.writeFile(t, "people.csv", "name,age\nada,36\n")

	out := env.mustRun(t, "upload", src)
	assert.Contains(t, out, "people.csv")
	assert.Contains(t, out, "json")

	orig := env.fileNamed(t, "people.csv")

	out = env.mustRun(t, "convert", orig.ID, "json", "--quality", "high")
	assert.Contains(t, out, "with tabular")
	assert.NotContains(t, out, "Replaced")

	conv := env.fileNamed(t, "people.json")

	out = env.mustRun(t, "conversions")
	assert.Contains(t, out, orig.ID)
	assert.Contains(t, out, conv.ID)

	dst := filepath.Join(env.baseDir, "out.json")
	env.mustRun(t, "download", conv.ID, "--out", dst)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "ada"`)

	out = env.mustRun(t, "convert", orig.ID, "xlsx")
	assert.Contains(t, out, "Replaced previous conversion "+conv.ID)

	env.mustRun(t, "delete", orig.ID)
	out = env.mustRun(t, "files")
	assert.Contains(t, out, "No files stored")
}

func TestCLI_DownloadToStdout(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.writeFile(t, "notes.tsv", "k\tv\n1\t2\n")
	env.mustRun(t, "upload", src)
	rec := env.fileNamed(t, "notes.tsv")

	out := env.mustRun(t, "download", rec.ID, "--out", "-")
	assert.Equal(t, "k\tv\n1\t2\n", out)
}

func TestCLI_ConvertErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	src := env.writeFile(t, "sheet.csv", "a\n1\n")
	env.mustRun(t, "upload", src)
	rec := env.fileNamed(t, "sheet.csv")

	_, err := env.run(t, "convert", rec.ID, "mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv converts to: json, tsv, xlsx")

	_, err = env.run(t, "convert", rec.ID, "json", "--quality", "ultra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown quality")

	_, err = env.run(t, "convert", "00000000-0000-0000-0000-000000000000", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCLI_DeleteUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "delete", "missing")
	require.Error(t, err)
	assert.Equal(t, "file missing not found", err.Error())
}

func TestCLI_UploadMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "upload", filepath.Join(env.baseDir, "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestCLI_Catalog(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "converters")
	for _, name := range []string{"ffmpeg", "image", "tabular"} {
		assert.Contains(t, out, name)
	}

	out = env.mustRun(t, "formats")
	assert.Contains(t, out, "tabular")
	assert.Contains(t, out, "webm")

	out = env.mustRun(t, "formats", "PNG")
	assert.Equal(t, "png converts to: bmp, gif, jpeg, jpg, tif, tiff\n", out)

	_, err := env.run(t, "formats", "docx")
	require.Error(t, err)
}

func TestCLI_VersionSkipsAppInit(t *testing.T) {
	env := setupCLITestEnv(t)

	// an invalid driver would fail app construction
	out, err := env.run(t, "-x", "oracle", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version:")

	_, err = env.run(t, "-x", "oracle", "files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")
}

func TestCLI_ConfigFile(t *testing.T) {
	env := setupCLITestEnv(t)
	cfgPath := env.writeFile(t, "transmute.json", `{"data_dir": "`+filepath.ToSlash(filepath.Join(env.baseDir, "fromjson"))+`"}`)

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-c", cfgPath, "files"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "No files stored")
	assert.DirExists(t, filepath.Join(env.baseDir, "fromjson", "blobs"))
}
