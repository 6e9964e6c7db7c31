package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "hello")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "world")

	dir := t.TempDir()
	tarball := filepath.Join(dir, "out.tar.gz")
	manifestPath := filepath.Join(dir, "manifest.db")

	entry, err := Create(src, tarball, manifestPath)
	require.NoError(t, err)
	require.Equal(t, "out.tar.gz", entry.Name)
	require.Equal(t, src, entry.SourceDir)
	require.Greater(t, entry.SizeBytes, int64(0))

	dest := filepath.Join(dir, "restored")
	require.NoError(t, Load(tarball, dest))

	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestCreateRecordsManifestEntry(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "hi")

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.db")

	_, err := Create(src, filepath.Join(dir, "one.tar.gz"), manifestPath)
	require.NoError(t, err)
	_, err = Create(src, filepath.Join(dir, "two.tar.gz"), manifestPath)
	require.NoError(t, err)

	mf, err := OpenManifest(manifestPath)
	require.NoError(t, err)
	defer mf.Close()

	entries, err := mf.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Most recently created first.
	require.Equal(t, "two.tar.gz", entries[0].Name)
	require.Equal(t, "one.tar.gz", entries[1].Name)
}

func TestLoadRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "evil.tar.gz")

	f, err := os.Create(tarball)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escaped.txt",
		Typeflag: tar.TypeReg,
		Size:     4,
		Mode:     0o600,
	}))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "restored")
	err = Load(tarball, dest)
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes destination")
}
