package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"pdfqa/internal/domain"
)

const (
	manifestName  = "manifest.yaml"
	entriesName   = "entries.gob"
	lockName      = ".lock"
	formatVersion = 1
)

// manifest describes a persisted index. It is written after the entries file
// so a manifest always refers to a complete entries file.
type manifest struct {
	Version   int       `yaml:"version"`
	BuildID   string    `yaml:"build_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Dimension int       `yaml:"dimension"`
	Count     int       `yaml:"count"`
	Metric    string    `yaml:"metric"`
	Embedder  string    `yaml:"embedder"`
	Checksum  string    `yaml:"checksum"`
}

type entriesPayload struct {
	Entries []domain.Entry
}

// Persist writes the index to dir, replacing any index already there.
func (ix *Index) Persist(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking index dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entriesPayload{Entries: ix.entries}); err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	if err := writeAtomic(filepath.Join(dir, entriesName), buf.Bytes()); err != nil {
		return err
	}

	m := manifest{
		Version:   formatVersion,
		BuildID:   ix.buildID,
		CreatedAt: ix.createdAt,
		Dimension: ix.dimension,
		Count:     len(ix.entries),
		Metric:    ix.metric,
		Embedder:  ix.embedderName,
		Checksum:  hex.EncodeToString(sum[:]),
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeAtomic(filepath.Join(dir, manifestName), data)
}

// Load reads an index persisted by Persist. It fails with domain.ErrNotFound
// when dir holds no index and domain.ErrCorruptIndex when the stored data does
// not pass its integrity checks.
func Load(dir string) (*Index, error) {
	manifestPath := filepath.Join(dir, manifestName)
	if _, err := os.Stat(manifestPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no index in %s", domain.ErrNotFound, dir)
		}
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, lockName))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking index dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", domain.ErrCorruptIndex, err)
	}
	if m.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", domain.ErrCorruptIndex, m.Version)
	}
	ix, err := New(m.Dimension, m.Metric, m.Embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}

	payload, err := readFile(filepath.Join(dir, entriesName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: entries file missing", domain.ErrCorruptIndex)
		}
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != m.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrCorruptIndex)
	}
	var decoded entriesPayload
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding entries: %v", domain.ErrCorruptIndex, err)
	}
	if len(decoded.Entries) != m.Count {
		return nil, fmt.Errorf("%w: manifest lists %d entries, found %d", domain.ErrCorruptIndex, m.Count, len(decoded.Entries))
	}
	for i, e := range decoded.Entries {
		if len(e.Vector) != m.Dimension {
			return nil, fmt.Errorf("%w: entry %d has %d values, manifest says %d", domain.ErrCorruptIndex, i, len(e.Vector), m.Dimension)
		}
	}

	ix.entries = decoded.Entries
	ix.buildID = m.BuildID
	ix.createdAt = m.CreatedAt
	return ix, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
