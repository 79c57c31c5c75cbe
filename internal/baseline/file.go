package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/foreseon/IntelXScan/internal/model"
)

const lockFileName = ".intelxscan.lock"

// FileStore keeps one JSON array per email at <root>/<key>.json.
type FileStore struct {
	root string
	mode KeyMode
}

func NewFileStore(root string, mode KeyMode) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("baseline: empty storage root")
	}
	if mode == "" {
		mode = KeyLiteral
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &FileStore{root: root, mode: mode}, nil
}

// Path returns the file backing email's baseline.
func (s *FileStore) Path(email string) (string, error) {
	key, err := storageKey(email, s.mode)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, key+".json"), nil
}

func (s *FileStore) Load(_ context.Context, email string) ([]model.LeakRecord, error) {
	path, err := s.Path(email)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.LeakRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decode(raw, path)
}

// Save writes to a temp file in the same directory and renames it over the
// previous baseline.
func (s *FileStore) Save(_ context.Context, email string, records []model.LeakRecord) error {
	if records == nil {
		return model.ErrNilRecords
	}
	path, err := s.Path(email)
	if err != nil {
		return err
	}
	data, err := encode(records)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Lock takes an exclusive advisory lock on the storage root. It does not
// wait: a lock held by another process yields model.ErrLocked.
func (s *FileStore) Lock(_ context.Context) (func() error, error) {
	fl := flock.New(filepath.Join(s.root, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, model.ErrLocked
	}
	return fl.Unlock, nil
}

func (s *FileStore) Close() error { return nil }

func encode(records []model.LeakRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode baseline: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decode(raw []byte, where string) ([]model.LeakRecord, error) {
	var records []model.LeakRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return []model.LeakRecord{}, fmt.Errorf("%w: %s: %v", model.ErrCorruptBaseline, where, err)
	}
	if records == nil {
		records = []model.LeakRecord{}
	}
	return records, nil
}
