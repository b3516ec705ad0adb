package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"time"
)

// Index file layout (little-endian):
//
//	magic        [4]byte  "GIDX"
//	version      uint32
//	dimension    uint32
//	rows         uint32
//	builtAt      int64    unix nanoseconds
//	fingerprint  [32]byte
//	vectors      rows*dimension float32
const (
	indexMagic         = "GIDX"
	indexFormatVersion = uint32(1)
	indexHeaderSize    = 4 + 4 + 4 + 4 + 8 + 32
)

// FileStore keeps the index in a binary file and the metadata in a JSON array
// file, [{"tag": ..., "text": ...}, ...], in row order
type FileStore struct {
	indexPath    string
	metadataPath string
}

// NewFileStore creates a store over the given artifact paths
func NewFileStore(indexPath, metadataPath string) *FileStore {
	return &FileStore{indexPath: indexPath, metadataPath: metadataPath}
}

// IndexPath returns the index file path
func (s *FileStore) IndexPath() string { return s.indexPath }

// MetadataPath returns the metadata file path
func (s *FileStore) MetadataPath() string { return s.metadataPath }

func (s *FileStore) Location() string {
	return s.indexPath + " + " + s.metadataPath
}

func (s *FileStore) Close() error { return nil }

// Exists is true only when both files are present
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	for _, p := range []string{s.indexPath, s.metadataPath} {
		_, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *FileStore) Load(ctx context.Context) (*Artifacts, error) {
	ok, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	artifacts, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	records, err := s.readMetadata()
	if err != nil {
		return nil, err
	}
	artifacts.Records = records

	if err := artifacts.Validate(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *FileStore) Save(ctx context.Context, artifacts *Artifacts) error {
	if err := artifacts.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Each file is replaced atomically but the pair is not. A crash between
	// the two renames leaves a misaligned pair that Load rejects as
	// ErrCorruptIndex, which stops startup until the index is rebuilt.
	if err := writeFileAtomic(s.indexPath, func(w io.Writer) error {
		return writeIndex(w, artifacts)
	}); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	if err := writeFileAtomic(s.metadataPath, func(w io.Writer) error {
		records := artifacts.Records
		if records == nil {
			records = []Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	}); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func writeIndex(w io.Writer, artifacts *Artifacts) error {
	idx := artifacts.Index
	header := make([]byte, indexHeaderSize)
	copy(header[0:4], indexMagic)
	binary.LittleEndian.PutUint32(header[4:8], indexFormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(idx.Dimension()))
	binary.LittleEndian.PutUint32(header[12:16], uint32(idx.Len()))
	var builtAt int64
	if !artifacts.BuiltAt.IsZero() {
		builtAt = artifacts.BuiltAt.UnixNano()
	}
	binary.LittleEndian.PutUint64(header[16:24], uint64(builtAt))
	copy(header[24:56], artifacts.Fingerprint[:])

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(serializeVector(idx.data))
	return err
}

func (s *FileStore) readIndex() (*Artifacts, error) {
	f, err := os.Open(s.indexPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	header := make([]byte, indexHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptIndex, err)
	}
	if string(header[0:4]) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, header[0:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != indexFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptIndex, v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	rows := int(binary.LittleEndian.Uint32(header[12:16]))
	builtAt := int64(binary.LittleEndian.Uint64(header[16:24]))

	artifacts := &Artifacts{}
	copy(artifacts.Fingerprint[:], header[24:56])
	if builtAt != 0 {
		artifacts.BuiltAt = time.Unix(0, builtAt).UTC()
	}

	if dim <= 0 && rows > 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrCorruptIndex, dim)
	}

	// Size the vector block from the file, never from the header alone
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	want, ok := vectorBytes(rows, dim)
	if !ok || info.Size() < indexHeaderSize || uint64(info.Size()-indexHeaderSize) != want {
		return nil, fmt.Errorf("%w: %d rows of dimension %d do not fit a %d byte file",
			ErrCorruptIndex, rows, dim, info.Size())
	}

	blob := make([]byte, want)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, fmt.Errorf("%w: expected %d rows of dimension %d: %v", ErrCorruptIndex, rows, dim, err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after %d rows", ErrCorruptIndex, rows)
	}

	artifacts.Index = &Index{dim: dim, data: deserializeVector(blob)}
	return artifacts, nil
}

// vectorBytes returns rows*dim*4, reporting false on uint64 overflow
func vectorBytes(rows, dim int) (uint64, bool) {
	hi, n := bits.Mul64(uint64(rows), uint64(dim))
	if hi != 0 || n > math.MaxUint64/4 {
		return 0, false
	}
	return n * 4, true
}

func (s *FileStore) readMetadata() ([]Record, error) {
	data, err := os.ReadFile(s.metadataPath)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrCorruptIndex, err)
	}
	return records, nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it into place
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
