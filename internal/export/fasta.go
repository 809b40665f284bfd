// Package export writes encoded melodic lines in formats read by external
// search tools.
package export

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

// FASTAExtension is the extension BLAST database tools expect
const FASTAExtension = ".fsa"

// FASTAResult counts what one track export wrote
type FASTAResult struct {
	Path    string
	Written int
	Empty   int // lines with nothing to encode on this track, left out
}

// FASTAName returns the file name of a track's sequences. The rhythmic
// track keeps its legacy "rhythm" name.
func FASTAName(t alphabet.Track) string {
	if t == alphabet.Rhythmic {
		return "rhythm" + FASTAExtension
	}
	return string(t) + FASTAExtension
}

// WriteFASTA writes one ">id" header and one sequence line per melodic line.
// Lines with an empty encoding on the track are skipped, since sequence
// databases reject empty records.
func WriteFASTA(w io.Writer, lines []*store.MelodicLine, t alphabet.Track) (written, empty int, err error) {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		seq := l.Feature(t)
		if seq == "" {
			empty++
			continue
		}
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", l.ID, seq); err != nil {
			return written, empty, err
		}
		written++
	}
	return written, empty, bw.Flush()
}

// WriteFASTASet exports every track of the given lines into dir, one file
// per track. Only lines encoded with set are accepted, and only exact
// regime sets produce sequences a protein aligner can read.
func WriteFASTASet(dir string, set *alphabet.Set, lines []*store.MelodicLine) ([]FASTAResult, error) {
	if set.Regime != alphabet.Exact {
		return nil, fmt.Errorf("%w: FASTA export needs an exact regime set, got %s", util.ErrInvalidConfig, set.Regime)
	}
	for _, l := range lines {
		if l.DictionaryVersion != set.Version {
			return nil, fmt.Errorf("%w: line %s was encoded with dictionary %q, not %s",
				util.ErrInvalidConfig, l.ID, l.DictionaryVersion, set.Version)
		}
	}

	results := make([]FASTAResult, 0, len(alphabet.Tracks))
	for _, t := range alphabet.Tracks {
		var buf bytes.Buffer
		written, empty, err := WriteFASTA(&buf, lines, t)
		if err != nil {
			return results, err
		}
		path := filepath.Join(dir, FASTAName(t))
		if err := util.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
			return results, fmt.Errorf("write %s: %w", path, err)
		}
		results = append(results, FASTAResult{Path: path, Written: written, Empty: empty})
	}
	return results, nil
}
