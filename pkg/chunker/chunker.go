package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// DefaultChunkSize is the reference chunk size (4 MiB).
const DefaultChunkSize = 4 * 1024 * 1024

var ErrChunkCorrupted = errors.New("chunk content does not match its hash")

// Chunk is one manifest entry.
type Chunk struct {
	Index  int    `json:"index"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
}

// Manifest is the ordered chunk list of a file.
type Manifest struct {
	ChunkSize int64   `json:"chunkSize"`
	Chunks    []Chunk `json:"chunks"`
}

// Hashes returns the chunk hashes in file order.
func (m *Manifest) Hashes() []string {
	out := make([]string, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Hash
	}
	return out
}

// Sizes returns the chunk sizes in file order.
func (m *Manifest) Sizes() []int64 {
	out := make([]int64, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Size
	}
	return out
}

// TotalSize is the sum of all chunk sizes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, c := range m.Chunks {
		total += c.Size
	}
	return total
}

// Chunker splits streams into fixed-size chunks.
type Chunker struct {
	size int64
}

// New creates a chunker. A non-positive size falls back to DefaultChunkSize.
func New(size int64) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int64 {
	return c.size
}

// Split reads r to EOF and returns its manifest. Only the final chunk may be
// shorter than the chunk size. Empty input yields an empty manifest.
func (c *Chunker) Split(r io.Reader) (*Manifest, error) {
	m := &Manifest{ChunkSize: c.size}
	buf := make([]byte, c.size)
	var offset int64

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			m.Chunks = append(m.Chunks, Chunk{
				Index:  len(m.Chunks),
				Offset: offset,
				Size:   int64(n),
				Hash:   Hash(buf[:n]),
			})
			offset += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk %d: %w", len(m.Chunks), err)
		}
	}
}

// SplitFile opens path and splits it.
func (c *Chunker) SplitFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Split(f)
}

// ReadChunk reads the bytes of chunk ch from ra into a fresh slice.
func ReadChunk(ra io.ReaderAt, ch Chunk) ([]byte, error) {
	data := make([]byte, ch.Size)
	if _, err := ra.ReadAt(data, ch.Offset); err != nil && !(errors.Is(err, io.EOF) && ch.Size == 0) {
		return nil, fmt.Errorf("read chunk %d: %w", ch.Index, err)
	}
	return data, nil
}

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks that data hashes to want.
func Verify(want string, data []byte) error {
	if got := Hash(data); got != want {
		return fmt.Errorf("%w: want %s got %s", ErrChunkCorrupted, want, got)
	}
	return nil
}

// VerifyingReader hashes bytes as they are read and fails at EOF on mismatch.
type VerifyingReader struct {
	r    io.Reader
	h    hash.Hash
	want string
}

// NewVerifyingReader wraps r so the final Read reports ErrChunkCorrupted on mismatch.
func NewVerifyingReader(r io.Reader, want string) *VerifyingReader {
	return &VerifyingReader{r: r, h: sha256.New(), want: want}
}

func (v *VerifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
	}
	if err == io.EOF {
		if got := hex.EncodeToString(v.h.Sum(nil)); got != v.want {
			return n, fmt.Errorf("%w: want %s got %s", ErrChunkCorrupted, v.want, got)
		}
	}
	return n, err
}
