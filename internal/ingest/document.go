package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/util"
)

// FeatureExtension is the extension of corpus feature files
const FeatureExtension = ".json"

// Document is one corpus feature file: the raw ";"-separated token
// strings of a melodic line
type Document struct {
	ID            string `json:"id"`
	Chromatic     string `json:"chromatic"`
	Diatonic      string `json:"diatonic"`
	Rhythm        string `json:"rhythm"`
	FileExtension string `json:"file_extension,omitempty"`

	Path string `json:"-"`
}

// Raw returns the raw token string of a track
func (d *Document) Raw(t alphabet.Track) string {
	switch t {
	case alphabet.Chromatic:
		return d.Chromatic
	case alphabet.Diatonic:
		return d.Diatonic
	case alphabet.Rhythmic:
		return d.Rhythm
	}
	return ""
}

// Tokens parses every track into canonical tokens
func (d *Document) Tokens() (map[alphabet.Track][]string, error) {
	out := make(map[alphabet.Track][]string, len(alphabet.Tracks))
	for _, t := range alphabet.Tracks {
		toks, err := alphabet.ParseTokens(d.Raw(t))
		if err != nil {
			return nil, fmt.Errorf("%s track: %w", t, err)
		}
		out[t] = toks
	}
	return out, nil
}

// ReadDocument loads a feature file. A document without an id takes the
// file name without extension. A nil retry uses util.DefaultRetryConfig.
func ReadDocument(ctx context.Context, path string, retry *util.RetryConfig) (*Document, error) {
	data, err := util.RetryableReadFile(ctx, path, retry)
	if err != nil {
		return nil, err
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrCorrupt, path, err)
	}
	if strings.TrimSpace(d.ID) == "" {
		d.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	d.ID = strings.TrimSpace(d.ID)
	d.Path = path
	return &d, nil
}

// Discover returns every feature file under root in lexical order.
// Unreadable directories are logged and skipped.
func Discover(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), FeatureExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
