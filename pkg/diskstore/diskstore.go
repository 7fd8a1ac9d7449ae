package diskstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spaolacci/murmur3"
)

const (
	// DefaultFanout is the number of top level bucket directories.
	DefaultFanout = 256
	tmpSuffix     = ".part"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrInvalidKey   = errors.New("invalid object key")
	ErrSizeMismatch = errors.New("object size mismatch")
)

// Config configures a disk store.
type Config struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
	FSync   bool   `json:"fsync" yaml:"fsync"`
	Fanout  int    `json:"fanout" yaml:"fanout"`
}

// Store keeps one file per object, spread over murmur3 hashed bucket directories.
type Store struct {
	root   string
	fsync  bool
	fanout uint64
	bufs   *sync.Pool
}

// Stats summarizes the objects currently stored.
type Stats struct {
	Objects int64 `json:"objects"`
	Bytes   int64 `json:"bytes"`
}

// New opens (creating if needed) a store rooted at cfg.DataDir.
func New(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("diskstore: data dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	fanout := cfg.Fanout
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Store{
		root:   filepath.Clean(cfg.DataDir),
		fsync:  cfg.FSync,
		fanout: uint64(fanout),
		bufs: &sync.Pool{
			New: func() interface{} {
				b := make([]byte, 256*1024)
				return &b
			},
		},
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Path maps key to its on-disk location.
func (s *Store) Path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	bucket := murmur3.Sum64([]byte(key)) % s.fanout
	return filepath.Join(s.root, fmt.Sprintf("%03x", bucket), filepath.FromSlash(key)), nil
}

// Put writes size bytes from r under key. The object becomes visible atomically.
// A negative size accepts whatever r yields.
func (s *Store) Put(key string, r io.Reader, size int64) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	tmp, err := s.createTemp(path)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	buf := s.bufs.Get().(*[]byte)
	n, err := io.CopyBuffer(tmp, r, *buf)
	s.bufs.Put(buf)
	if err != nil {
		return err
	}
	if size >= 0 && n != size {
		return fmt.Errorf("%w: key %s wrote %d want %d", ErrSizeMismatch, key, n, size)
	}
	if s.fsync {
		if err := tmp.Sync(); err != nil {
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// Head returns the object size, or ErrNotFound.
func (s *Store) Head(key string) (int64, error) {
	path, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Open streams length bytes of key starting at offset. A negative length reads to the end.
// It returns the number of bytes the reader will yield.
func (s *Store) Open(key string, offset, length int64) (io.ReadCloser, int64, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path) // #nosec G304 -- path is derived from a validated key under root
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}

	size := info.Size()
	if offset < 0 || offset > size {
		_ = f.Close()
		return nil, 0, fmt.Errorf("offset %d outside object of %d bytes", offset, size)
	}
	if length < 0 || offset+length > size {
		length = size - offset
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, 0, err
		}
	}
	return &limitedFile{Reader: io.LimitReader(f, length), f: f}, length, nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store) Delete(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

// DeleteBatch removes keys and returns the per-key failures.
func (s *Store) DeleteBatch(keys []string) map[string]error {
	var failed map[string]error
	for _, key := range keys {
		if err := s.Delete(key); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[key] = err
		}
	}
	return failed
}

// Stats walks the store and counts committed objects.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), tmpSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.Objects++
		st.Bytes += info.Size()
		return nil
	})
	return st, err
}

// createTemp opens a temp file next to path. A concurrent prune may remove the
// directory between MkdirAll and CreateTemp, so that case is retried once.
func (s *Store) createTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	pattern := filepath.Base(path) + ".*" + tmpSuffix
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
		f, err := os.CreateTemp(dir, pattern)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return nil, lastErr
}

// pruneEmptyDirs removes now-empty key directories up to the bucket level.
func (s *Store) pruneEmptyDirs(dir string) {
	for {
		parent := filepath.Dir(dir)
		if parent == s.root || dir == s.root || !strings.HasPrefix(dir, s.root) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = parent
	}
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." || strings.HasSuffix(part, tmpSuffix) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

type limitedFile struct {
	io.Reader
	f *os.File
}

func (l *limitedFile) Close() error {
	return l.f.Close()
}
