package costmatrix

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/util"
)

// maxKeyLen bounds a single key; symbols are one rune, so anything larger
// means the stream is not a cost matrix
const maxKeyLen = 1 << 10

// Write encodes m:
//
//	u32 rows
//	  u32 len, key bytes (UTF-8), u32 cols
//	    u32 len, key bytes (UTF-8), f32 cost
//
// All integers and floats are little-endian. Keys are written in sorted order
// so the same matrix always produces the same bytes.
func Write(w io.Writer, m Matrix) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte

	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(buf[:], v)
		_, err := bw.Write(buf[:])
		return err
	}
	putKey := func(k string) error {
		if err := putU32(uint32(len(k))); err != nil {
			return err
		}
		_, err := bw.WriteString(k)
		return err
	}

	if err := putU32(uint32(len(m))); err != nil {
		return err
	}
	for _, a := range m.Symbols() {
		row := m[a]
		if err := putKey(a); err != nil {
			return err
		}
		if err := putU32(uint32(len(row))); err != nil {
			return err
		}
		cols := make([]string, 0, len(row))
		for b := range row {
			cols = append(cols, b)
		}
		sort.Strings(cols)
		for _, b := range cols {
			if err := putKey(b); err != nil {
				return err
			}
			if err := putU32(math.Float32bits(row[b])); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Read decodes a matrix written by Write. Truncated input, oversized or
// non-UTF-8 keys are reported as util.ErrCorrupt.
func Read(r io.Reader) (Matrix, error) {
	br := bufio.NewReader(r)
	var buf [4]byte

	getU32 := func() (uint32, error) {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return 0, corrupt(err)
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
	getKey := func() (string, error) {
		n, err := getU32()
		if err != nil {
			return "", err
		}
		if n > maxKeyLen {
			return "", fmt.Errorf("%w: key length %d", util.ErrCorrupt, n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(br, b); err != nil {
			return "", corrupt(err)
		}
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: key is not UTF-8", util.ErrCorrupt)
		}
		return string(b), nil
	}

	rows, err := getU32()
	if err != nil {
		return nil, err
	}
	m := make(Matrix, min(rows, 4096))
	for i := uint32(0); i < rows; i++ {
		a, err := getKey()
		if err != nil {
			return nil, err
		}
		cols, err := getU32()
		if err != nil {
			return nil, err
		}
		row := make(map[string]float32, min(cols, 4096))
		for j := uint32(0); j < cols; j++ {
			b, err := getKey()
			if err != nil {
				return nil, err
			}
			bits, err := getU32()
			if err != nil {
				return nil, err
			}
			row[b] = math.Float32frombits(bits)
		}
		m[a] = row
	}
	return m, nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated cost matrix", util.ErrCorrupt)
	}
	return err
}

// Save writes m to path atomically
func Save(path string, m Matrix) error {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Load reads a matrix file
func Load(ctx context.Context, path string) (Matrix, error) {
	f, err := util.RetryableOpen(ctx, path, nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cost matrix %s: %w", path, util.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("cost matrix %s: %w", path, err)
	}
	return m, nil
}

// Set holds one matrix per feature track
type Set map[alphabet.Track]Matrix

// Path returns where the matrix of a track is stored for mode under dir
func Path(dir string, mode Mode, t alphabet.Track) string {
	return filepath.Join(dir, string(mode), string(t)+"_cost_map.bin")
}

// BuildSet builds a matrix per track from a dictionary set
func BuildSet(dicts *alphabet.Set, mode Mode) (Set, error) {
	out := make(Set, len(alphabet.Tracks))
	for _, t := range alphabet.Tracks {
		d, err := dicts.Dictionary(t)
		if err != nil {
			return nil, err
		}
		m, err := BuildMode(d, mode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		out[t] = m
	}
	return out, nil
}

// WriteSet saves every matrix of s under dir
func WriteSet(dir string, mode Mode, s Set) error {
	for _, t := range alphabet.Tracks {
		m, ok := s[t]
		if !ok {
			return fmt.Errorf("%s cost matrix: %w", t, util.ErrNotFound)
		}
		if err := Save(Path(dir, mode, t), m); err != nil {
			return err
		}
	}
	return nil
}

// LoadSet loads the three matrices of mode from dir
func LoadSet(ctx context.Context, dir string, mode Mode) (Set, error) {
	out := make(Set, len(alphabet.Tracks))
	for _, t := range alphabet.Tracks {
		m, err := Load(ctx, Path(dir, mode, t))
		if err != nil {
			return nil, err
		}
		out[t] = m
	}
	return out, nil
}

// Exists reports whether all three matrix files of mode are present
func Exists(dir string, mode Mode) bool {
	for _, t := range alphabet.Tracks {
		if _, err := os.Stat(Path(dir, mode, t)); err != nil {
			return false
		}
	}
	return true
}
