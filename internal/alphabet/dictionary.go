package alphabet

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/franz/fuga/internal/util"
)

// Dictionary maps canonical tokens to single symbols
type Dictionary map[string]string

// Validate checks that every symbol is a single rune used once
func (d Dictionary) Validate() error {
	seen := make(map[string]string, len(d))
	for tok, sym := range d {
		if len([]rune(sym)) != 1 {
			return fmt.Errorf("%w: token %q maps to %q, want one symbol", util.ErrCorrupt, tok, sym)
		}
		if other, dup := seen[sym]; dup {
			return fmt.Errorf("%w: tokens %q and %q share symbol %q", util.ErrCorrupt, other, tok, sym)
		}
		seen[sym] = tok
	}
	return nil
}

// Tokens returns the dictionary's tokens sorted by their symbol
func (d Dictionary) Tokens() []string {
	out := make([]string, 0, len(d))
	for tok := range d {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return d[out[i]] < d[out[j]] })
	return out
}

// Frequency is one row of a token frequency table
type Frequency struct {
	Token string
	Count int
}

// Counter tallies token frequencies over a corpus
type Counter struct {
	norm   Normalizer
	counts map[string]int
	total  int
}

// NewCounter creates a counter applying the given normalization
func NewCounter(norm Normalizer) *Counter {
	return &Counter{norm: norm, counts: make(map[string]int)}
}

// Add tallies one sequence of canonical tokens
func (c *Counter) Add(tokens []string) {
	for _, tok := range tokens {
		key, ok := c.norm.Apply(tok)
		if !ok {
			continue
		}
		c.counts[key]++
		c.total++
	}
}

// AddFrequencies tallies a saved frequency table. Tokens pass through the
// counter's normalization, so a table counted with rests kept can be folded.
func (c *Counter) AddFrequencies(freqs []Frequency) {
	for _, f := range freqs {
		key, ok := c.norm.Apply(f.Token)
		if !ok || f.Count <= 0 {
			continue
		}
		c.counts[key] += f.Count
		c.total += f.Count
	}
}

// Merge adds another counter's tallies into c
func (c *Counter) Merge(o *Counter) {
	for tok, n := range o.counts {
		c.counts[tok] += n
	}
	c.total += o.total
}

// Total returns the number of tallied tokens
func (c *Counter) Total() int {
	return c.total
}

// Distinct returns the number of distinct tokens seen
func (c *Counter) Distinct() int {
	return len(c.counts)
}

// Sorted returns the frequency table by descending count. Equal counts are
// ordered by token so the table, and any dictionary built from it, does not
// depend on map iteration order.
func (c *Counter) Sorted() []Frequency {
	out := make([]Frequency, 0, len(c.counts))
	for tok, n := range c.counts {
		out = append(out, Frequency{Token: tok, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Build keeps the top most frequent tokens and assigns symbols[0] to the most
// frequent, symbols[1] to the next and so on. freqs must already be sorted.
// Asking for more tokens than there are symbols is a configuration error;
// a corpus with fewer distinct tokens than top yields a smaller dictionary.
func Build(freqs []Frequency, symbols []string, top int) (Dictionary, error) {
	if top < 1 {
		return nil, fmt.Errorf("%w: top must be positive, got %d", util.ErrInvalidConfig, top)
	}
	if top > len(symbols) {
		return nil, fmt.Errorf("%w: top %d exceeds alphabet size %d", util.ErrInvalidConfig, top, len(symbols))
	}

	n := min(top, len(freqs))
	dict := make(Dictionary, n)
	for i := 0; i < n; i++ {
		dict[freqs[i].Token] = symbols[i]
	}
	return dict, nil
}

// Coverage returns the fraction of tallied tokens the dictionary can encode
func Coverage(freqs []Frequency, dict Dictionary) float64 {
	var covered, total int
	for _, f := range freqs {
		total += f.Count
		if _, ok := dict[f.Token]; ok {
			covered += f.Count
		}
	}
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

// WriteFrequencyCSV writes the table as "token,count" rows with a header
func WriteFrequencyCSV(w io.Writer, freqs []Frequency) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"token", "count"}); err != nil {
		return err
	}
	for _, f := range freqs {
		if err := cw.Write([]string{f.Token, strconv.Itoa(f.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFrequencyCSV parses a table written by WriteFrequencyCSV
func ReadFrequencyCSV(r io.Reader) ([]Frequency, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCorrupt, err)
	}
	var out []Frequency
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(row[0], "token") {
			continue
		}
		if len(row) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d fields", util.ErrCorrupt, i+1, len(row))
		}
		n, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d count %q", util.ErrCorrupt, i+1, row[1])
		}
		out = append(out, Frequency{Token: row[0], Count: n})
	}
	return out, nil
}
