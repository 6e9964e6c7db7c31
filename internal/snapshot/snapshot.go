// Package snapshot implements gzip-tar archival of the primary store
// directory, plus a manifest side-table
// recording checkpoint bookkeeping independent of the main badger store.
//
// The manifest is a small bbolt database used purely for bookkeeping rows,
// kept separate from the domain data it describes.
package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

func marshalEntry(e Entry) ([]byte, error)   { return json.Marshal(e) }
func unmarshalEntry(b []byte) (Entry, error) { var e Entry; err := json.Unmarshal(b, &e); return e, err }

var bucketSnapshots = []byte("snapshots")

// Manifest records one row per snapshot created, so `snapshot stats` can
// report history without re-opening every tarball.
type Manifest struct {
	db *bbolt.DB
}

// Entry is one manifest row.
type Entry struct {
	Name      string    `json:"name"`
	SourceDir string    `json:"source_dir"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenManifest opens (creating if necessary) the manifest database at path.
func OpenManifest(path string) (*Manifest, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open manifest: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: init manifest bucket: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close releases the manifest's bbolt handle.
func (m *Manifest) Close() error { return m.db.Close() }

// Record appends an Entry to the manifest.
func (m *Manifest) Record(e Entry) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		buf, err := marshalEntry(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(e.Name), buf)
	})
}

// List returns every recorded Entry, most recently created first.
func (m *Manifest) List() ([]Entry, error) {
	var out []Entry
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		return b.ForEach(func(_, v []byte) error {
			e, err := unmarshalEntry(v)
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create gzip-tars srcDir into destTarGz and records a manifest entry
// against manifestPath.
func Create(srcDir, destTarGz, manifestPath string) (Entry, error) {
	var entry Entry

	out, err := os.Create(destTarGz)
	if err != nil {
		return entry, fmt.Errorf("snapshot: create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}); err != nil {
		return entry, fmt.Errorf("snapshot: walk source dir: %w", err)
	}

	if err := tw.Close(); err != nil {
		return entry, fmt.Errorf("snapshot: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return entry, fmt.Errorf("snapshot: close gzip writer: %w", err)
	}

	stat, err := out.Stat()
	if err != nil {
		return entry, fmt.Errorf("snapshot: stat archive: %w", err)
	}

	entry = Entry{
		Name:      filepath.Base(destTarGz),
		SourceDir: srcDir,
		SizeBytes: stat.Size(),
		CreatedAt: time.Now().UTC(),
	}

	if manifestPath != "" {
		mf, err := OpenManifest(manifestPath)
		if err != nil {
			return entry, err
		}
		defer mf.Close()
		if err := mf.Record(entry); err != nil {
			return entry, err
		}
	}

	return entry, nil
}

// Load extracts srcTarGz into destDir, creating destDir fresh. destDir must
// not already exist as a non-empty directory: the caller is expected to
// point this at a brand-new primary path.
func Load(srcTarGz, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dest dir: %w", err)
	}

	in, err := os.Open(srcTarGz)
	if err != nil {
		return fmt.Errorf("snapshot: open archive: %w", err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("snapshot: open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("snapshot: read tar entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("snapshot: tar entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
	return nil
}
